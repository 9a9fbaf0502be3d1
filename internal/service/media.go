package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"xclone/internal/config"
	"xclone/internal/model"
)

// MediaStore stores normalized images and removes them again.
type MediaStore interface {
	// UploadImage decodes a base64 data URL, normalizes it to the given ImageSpec and stores it.
	UploadImage(ctx context.Context, dataURL string, spec model.ImageSpec) (*model.UploadResult, error)
	// DeleteObject removes an object by key. An empty key is a no-op.
	DeleteObject(ctx context.Context, key string) error
}

// MediaService stores images in Cloudflare R2 through the S3 API.
type MediaService struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
	log       zerolog.Logger
}

// NewMediaService constructs an S3-compatible client for Cloudflare R2.
func NewMediaService(ctx context.Context, cfg *config.Config) (*MediaService, error) {
	if !cfg.MediaEnabled() {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &MediaService{
		s3Client:  s3Client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
		log:       log.With().Str("component", "MediaService").Logger(),
	}, nil
}

func (s *MediaService) UploadImage(ctx context.Context, dataURL string, spec model.ImageSpec) (*model.UploadResult, error) {
	data, err := decodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := normalizeImage(data, spec)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", spec.Folder, uuid.NewString(), model.ImageExt)
	if err := s.putObject(ctx, key, jpegBytes, model.ContentTypeJPEG, model.ImageCacheControl); err != nil {
		return nil, err
	}

	s.log.Debug().Str("key", key).Int("bytes", len(jpegBytes)).Msg("Image uploaded")
	return &model.UploadResult{URL: fmt.Sprintf("%s/%s", s.publicURL, key), Key: key}, nil
}

// decodeDataURL extracts and validates the payload of "data:<type>;base64,<data>".
func decodeDataURL(dataURL string) ([]byte, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, model.ErrInvalidImageData
	}

	// Base64 inflates by 4/3; reject oversized payloads before decoding.
	if int64(len(payload)) > model.MaxImageSizeBytes/3*4+4 {
		return nil, model.ErrFileTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, model.ErrInvalidImageData
	}
	if int64(len(data)) > model.MaxImageSizeBytes {
		return nil, model.ErrFileTooLarge
	}

	// The declared type is client-controlled; trust the bytes.
	contentType := http.DetectContentType(data[:min(len(data), 512)])
	if !model.IsAllowedImageType(contentType) {
		return nil, model.ErrInvalidImageType
	}
	return data, nil
}

// normalizeImage re-encodes to JPEG, cropping to fill spec's box or fitting inside it.
func normalizeImage(data []byte, spec model.ImageSpec) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.ErrInvalidImageType
	}

	if spec.Crop {
		img = imaging.Fill(img, spec.Width, spec.Height, imaging.Center, imaging.Lanczos)
	} else {
		b := img.Bounds()
		if b.Dx() > spec.Width || b.Dy() > spec.Height {
			img = imaging.Fit(img, spec.Width, spec.Height, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(model.ImageJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *MediaService) putObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	return nil
}

func (s *MediaService) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}
