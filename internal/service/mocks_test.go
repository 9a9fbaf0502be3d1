package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/cache"
	"xclone/internal/model"
	"xclone/internal/queue"
	"xclone/internal/repository"
)

// =============================================================================
// In-memory store shared by the repository mocks
// =============================================================================

type memStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*model.User
	posts map[primitive.ObjectID]*model.Post
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[primitive.ObjectID]*model.User),
		posts: make(map[primitive.ObjectID]*model.Post),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now advances a fake clock by one millisecond per call.
func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) addUser(username string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{
		ID:         primitive.NewObjectID(),
		Username:   username,
		FullName:   username + " name",
		Email:      username + "@example.com",
		Followers:  []primitive.ObjectID{},
		Following:  []primitive.ObjectID{},
		LikedPosts: []primitive.ObjectID{},
		CreatedAt:  s.now(),
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addPost(author primitive.ObjectID, text string, at time.Time) *model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Post{
		ID:        primitive.NewObjectID(),
		UserID:    author,
		Text:      text,
		Likes:     []primitive.ObjectID{},
		Comments:  []model.Comment{},
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.posts[p.ID] = p
	return p
}

func (s *memStore) user(id primitive.ObjectID) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *s.users[id]
	return &u
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.Followers = append([]primitive.ObjectID{}, u.Followers...)
	c.Following = append([]primitive.ObjectID{}, u.Following...)
	c.LikedPosts = append([]primitive.ObjectID{}, u.LikedPosts...)
	return &c
}

func copyPost(p *model.Post) model.Post {
	c := *p
	c.Likes = append([]primitive.ObjectID{}, p.Likes...)
	c.Comments = append([]model.Comment{}, p.Comments...)
	return c
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// MOCK USER REPOSITORY
// =============================================================================

type mockUserRepository struct {
	store *memStore

	// Optional overrides
	createFn       func(ctx context.Context, user *model.User) error
	addLikedPostFn func(ctx context.Context, userID, postID primitive.ObjectID) error
	updateFn       func(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error)

	updateCalls []model.UserPatch
}

var _ repository.UserRepository = (*mockUserRepository)(nil)

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Username == user.Username {
			return model.ErrUsernameExists
		}
		if u.Email == user.Email {
			return model.ErrEmailExists
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = m.store.now()
	user.UpdatedAt = user.CreatedAt
	m.store.users[user.ID] = copyUser(user)
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := m.store.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (m *mockUserRepository) Update(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error) {
	m.updateCalls = append(m.updateCalls, patch)
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.FullName, patch.FullName)
	set(&u.Email, patch.Email)
	set(&u.Username, patch.Username)
	set(&u.Bio, patch.Bio)
	set(&u.Link, patch.Link)
	set(&u.Password, patch.Password)
	set(&u.ProfileImg, patch.ProfileImg)
	set(&u.ProfileImgKey, patch.ProfileImgKey)
	set(&u.CoverImg, patch.CoverImg)
	set(&u.CoverImgKey, patch.CoverImgKey)
	return copyUser(u), nil
}

func (m *mockUserRepository) Sample(ctx context.Context, excludeID primitive.ObjectID, size int) ([]model.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make([]model.User, 0, size)
	for _, u := range m.store.users {
		if u.ID == excludeID {
			continue
		}
		out = append(out, *copyUser(u))
		if len(out) == size {
			break
		}
	}
	return out, nil
}

func (m *mockUserRepository) AddLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	if m.addLikedPostFn != nil {
		return m.addLikedPostFn(ctx, userID, postID)
	}
	return m.editUser(userID, func(u *model.User) { u.LikedPosts = addID(u.LikedPosts, postID) })
}

func (m *mockUserRepository) RemoveLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return m.editUser(userID, func(u *model.User) { u.LikedPosts = removeID(u.LikedPosts, postID) })
}

func (m *mockUserRepository) RemoveLikedPostFromAll(ctx context.Context, postID primitive.ObjectID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		u.LikedPosts = removeID(u.LikedPosts, postID)
	}
	return nil
}

func (m *mockUserRepository) editUser(id primitive.ObjectID, fn func(u *model.User)) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(u)
	return nil
}

// =============================================================================
// MOCK FOLLOW REPOSITORY
// =============================================================================

type mockFollowRepository struct {
	store *memStore

	// failAddFollowing returns an error for the n-th AddFollowing call (1-based), or nil.
	failAddFollowing    func(call int) error
	failRemoveFollowing func(call int) error

	addFollowingCalls    int
	removeFollowingCalls int
}

var _ repository.FollowRepository = (*mockFollowRepository)(nil)

func (m *mockFollowRepository) edit(id primitive.ObjectID, fn func(u *model.User)) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *mockFollowRepository) AddFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return m.edit(userID, func(u *model.User) { u.Followers = addID(u.Followers, followerID) })
}

func (m *mockFollowRepository) RemoveFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return m.edit(userID, func(u *model.User) { u.Followers = removeID(u.Followers, followerID) })
}

func (m *mockFollowRepository) AddFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error {
	m.addFollowingCalls++
	if m.failAddFollowing != nil {
		if err := m.failAddFollowing(m.addFollowingCalls); err != nil {
			return err
		}
	}
	return m.edit(userID, func(u *model.User) { u.Following = addID(u.Following, followeeID) })
}

func (m *mockFollowRepository) RemoveFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error {
	m.removeFollowingCalls++
	if m.failRemoveFollowing != nil {
		if err := m.failRemoveFollowing(m.removeFollowingCalls); err != nil {
			return err
		}
	}
	return m.edit(userID, func(u *model.User) { u.Following = removeID(u.Following, followeeID) })
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return append([]primitive.ObjectID{}, u.Followers...), nil
}

func (m *mockFollowRepository) GetFolloweeIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return append([]primitive.ObjectID{}, u.Following...), nil
}

// =============================================================================
// MOCK POST / COMMENT REPOSITORIES
// =============================================================================

type mockPostRepository struct {
	store *memStore

	listCalls   int
	byIDsCalls  int
	scoresCalls int
}

var _ repository.PostRepository = (*mockPostRepository)(nil)

func newerFirst(a, b *model.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

func (m *mockPostRepository) sorted() []*model.Post {
	posts := make([]*model.Post, 0, len(m.store.posts))
	for _, p := range m.store.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return newerFirst(posts[i], posts[j]) })
	return posts
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = m.store.now()
	post.UpdatedAt = post.CreatedAt
	post.Likes = []primitive.ObjectID{}
	post.Comments = []model.Comment{}
	c := copyPost(post)
	m.store.posts[post.ID] = &c
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID primitive.ObjectID) (*model.Post, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.posts[postID]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	c := copyPost(p)
	return &c, nil
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, postIDs []primitive.ObjectID) ([]model.Post, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.byIDsCalls++
	out := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := m.store.posts[id]; ok {
			out = append(out, copyPost(p))
		}
	}
	return out, nil
}

func (m *mockPostRepository) List(ctx context.Context, q repository.PostQuery) ([]model.Post, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.listCalls++
	return m.list(q), nil
}

// list expects the store lock to be held.
func (m *mockPostRepository) list(q repository.PostQuery) []model.Post {
	var authors map[primitive.ObjectID]bool
	if q.AuthorIDs != nil {
		authors = make(map[primitive.ObjectID]bool, len(q.AuthorIDs))
		for _, id := range q.AuthorIDs {
			authors[id] = true
		}
	}

	out := []model.Post{}
	for _, p := range m.sorted() {
		if authors != nil && !authors[p.UserID] {
			continue
		}
		if q.Before != nil {
			cursor := &model.Post{ID: q.Before.ID, CreatedAt: q.Before.CreatedAt}
			if !newerFirst(cursor, p) {
				continue
			}
		}
		out = append(out, copyPost(p))
		if len(out) == q.Limit {
			break
		}
	}
	return out
}

func (m *mockPostRepository) Delete(ctx context.Context, postID primitive.ObjectID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.posts[postID]; !ok {
		return model.ErrPostNotFound
	}
	delete(m.store.posts, postID)
	return nil
}

func (m *mockPostRepository) editPost(id primitive.ObjectID, fn func(p *model.Post)) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.posts[id]
	if !ok {
		return model.ErrPostNotFound
	}
	fn(p)
	return nil
}

func (m *mockPostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	return m.editPost(postID, func(p *model.Post) { p.Likes = addID(p.Likes, userID) })
}

func (m *mockPostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	return m.editPost(postID, func(p *model.Post) { p.Likes = removeID(p.Likes, userID) })
}

func (m *mockPostRepository) GetFeedPostScores(ctx context.Context, authorIDs []primitive.ObjectID, limit int) ([]cache.PostScore, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.scoresCalls++
	posts := m.list(repository.PostQuery{AuthorIDs: authorIDs, Limit: limit})
	out := make([]cache.PostScore, len(posts))
	for i, p := range posts {
		out[i] = cache.PostScore{PostID: p.ID.Hex(), Timestamp: p.CreatedAt.UnixMilli()}
	}
	return out, nil
}

type mockCommentRepository struct {
	store *memStore
}

func (m *mockCommentRepository) Append(ctx context.Context, postID primitive.ObjectID, comment *model.Comment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.posts[postID]
	if !ok {
		return model.ErrPostNotFound
	}
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = m.store.now()
	p.Comments = append(p.Comments, *comment)
	return nil
}

// =============================================================================
// MOCK FEED CACHE
// =============================================================================

// mockFeedCache mirrors the Redis sorted-set semantics: newest first, ties by
// id descending, inclusive upper bound, trimmed to FeedCacheCap.
type mockFeedCache struct {
	mu    sync.Mutex
	feeds map[string][]cache.PostScore
	err   error

	invalidated []string
}

var _ cache.FeedCache = (*mockFeedCache)(nil)

func newMockFeedCache() *mockFeedCache {
	return &mockFeedCache{feeds: make(map[string][]cache.PostScore)}
}

func (m *mockFeedCache) sortAndTrim(key string) {
	entries := m.feeds[key]
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].PostID > entries[j].PostID
	})
	if len(entries) > cache.FeedCacheCap {
		entries = entries[:cache.FeedCacheCap]
	}
	m.feeds[key] = entries
}

func (m *mockFeedCache) AddPostIfCached(ctx context.Context, userIDs []string, postID string, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range userIDs {
		if _, ok := m.feeds[u]; ok {
			m.feeds[u] = append(m.feeds[u], cache.PostScore{PostID: postID, Timestamp: timestamp})
			m.sortAndTrim(u)
		}
	}
	return nil
}

func (m *mockFeedCache) GetFeed(ctx context.Context, userID string, maxScore *float64, limit int) ([]string, []float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, nil, m.err
	}
	var ids []string
	var scores []float64
	for _, e := range m.feeds[userID] {
		if maxScore != nil && float64(e.Timestamp) > *maxScore {
			continue
		}
		ids = append(ids, e.PostID)
		scores = append(scores, float64(e.Timestamp))
		if len(ids) == limit {
			break
		}
	}
	return ids, scores, nil
}

func (m *mockFeedCache) WarmCache(ctx context.Context, userID string, posts []cache.PostScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if len(posts) == 0 {
		return nil
	}
	m.feeds[userID] = append([]cache.PostScore{}, posts...)
	m.sortAndTrim(userID)
	return nil
}

func (m *mockFeedCache) Invalidate(ctx context.Context, userIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range userIDs {
		delete(m.feeds, u)
		m.invalidated = append(m.invalidated, u)
	}
	return nil
}

func (m *mockFeedCache) Size(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.feeds[userID])), nil
}

func (m *mockFeedCache) Exists(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.feeds[userID]
	return ok, nil
}

func (m *mockFeedCache) cached(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, e := range m.feeds[userID] {
		ids = append(ids, e.PostID)
	}
	return ids
}

// =============================================================================
// MOCK COLLABORATORS
// =============================================================================

type notifyCall struct {
	Type     string
	From, To primitive.ObjectID
	PostID   *primitive.ObjectID
}

type mockNotifier struct {
	calls []notifyCall
	err   error
}

func (m *mockNotifier) Notify(ctx context.Context, notifType string, from, to primitive.ObjectID, postID *primitive.ObjectID) error {
	if from == to {
		return nil
	}
	m.calls = append(m.calls, notifyCall{Type: notifType, From: from, To: to, PostID: postID})
	return m.err
}

type mockPublisher struct {
	events []queue.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.Event) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

type mockMediaStore struct {
	uploads   []model.ImageSpec
	deleted   []string
	uploadErr error
	n         int
}

func (m *mockMediaStore) UploadImage(ctx context.Context, dataURL string, spec model.ImageSpec) (*model.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.n++
	m.uploads = append(m.uploads, spec)
	key := spec.Folder + "/" + string(rune('a'+m.n-1)) + ".jpg"
	return &model.UploadResult{URL: "https://cdn.example.com/" + key, Key: key}, nil
}

func (m *mockMediaStore) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	m.deleted = append(m.deleted, key)
	return nil
}

var errStoreDown = errors.New("store unavailable")

func repositoryQueryAll() repository.PostQuery {
	return repository.PostQuery{Limit: 1 << 20}
}
