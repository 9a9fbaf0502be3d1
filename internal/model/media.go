package model

const (
	MaxImageSizeBytes = 5 * 1024 * 1024 // 5MB decoded
	ImageExt          = ".jpg"
	ImageCacheControl = "public, max-age=31536000" // 1 year
	ImageJPEGQuality  = 85

	ProfileImgFolder = "profile"
	ProfileImgWidth  = 400
	ProfileImgHeight = 400

	CoverImgFolder = "cover"
	CoverImgWidth  = 1500
	CoverImgHeight = 500
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge      = &Error{Kind: KindValidation, Code: CodeFileTooLarge, Message: "Image exceeds 5MB limit"}
	ErrInvalidImageType  = &Error{Kind: KindValidation, Code: CodeInvalidImageType, Message: "Unsupported image type. Allowed: jpeg, png, gif, webp"}
	ErrInvalidImageData  = newError(KindValidation, "Image must be a base64 data URL")
	ErrMediaNotAvailable = newError(KindValidation, "Image uploads are not enabled on this server")
)

// UploadResult represents the uploaded object location
// URL is the public-facing URL (using R2 public endpoint)
// Key is the object key inside the bucket (used for deletes)
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// ImageSpec describes how an uploaded image is normalized before storage.
type ImageSpec struct {
	Folder string
	Width  int
	Height int
	Crop   bool // Fill the box when true, fit inside it otherwise
}

var (
	ProfileImageSpec = ImageSpec{Folder: ProfileImgFolder, Width: ProfileImgWidth, Height: ProfileImgHeight, Crop: true}
	CoverImageSpec   = ImageSpec{Folder: CoverImgFolder, Width: CoverImgWidth, Height: CoverImgHeight, Crop: true}
	PostImageSpec    = ImageSpec{Folder: PostMediaFolder, Width: PostImageMaxSide, Height: PostImageMaxSide}
)

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
