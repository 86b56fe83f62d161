package post

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/z-blog/backend/internal/model/post"
)

// Store loads and replaces the whole post collection.
type Store interface {
	Read(ctx context.Context) ([]post.Post, error)
	Write(ctx context.Context, posts []post.Post) error
}

// Event types handed to the Publisher after a mutation is persisted.
const (
	EventCreated = "post.created"
	EventUpdated = "post.updated"
	EventDeleted = "post.deleted"
)

// Publisher receives committed changes. Implementations must not block.
type Publisher interface {
	Publish(eventType string, p post.Post)
}

// Service implements the post operations on top of a Store.
//
// Every operation reads the collection fresh. Mutations run their
// read-modify-write cycle under mu, so two requests in this process can no
// longer overwrite each other's changes. Other processes writing the same
// file are not coordinated with.
type Service struct {
	store  Store
	events Publisher
	now    func() time.Time

	mu sync.Mutex
}

// NewService wires the service to its store. events may be nil.
func NewService(store Store, events Publisher) *Service {
	return &Service{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// List returns the whole collection in stored order.
func (s *Service) List(ctx context.Context) ([]post.Post, error) {
	posts, err := s.store.Read(ctx)
	if err != nil {
		return nil, classifyRead(err)
	}
	return posts, nil
}

// Get returns the first post whose id equals idToken.
func (s *Service) Get(ctx context.Context, idToken string) (post.Post, error) {
	id, err := post.ParseID(idToken)
	if err != nil {
		return post.Post{}, badRequest(MsgInvalidID)
	}

	posts, err := s.store.Read(ctx)
	if err != nil {
		return post.Post{}, classifyRead(err)
	}

	idx := indexOf(posts, id)
	if idx < 0 {
		return post.Post{}, notFound(post.FormatID(id))
	}
	return posts[idx], nil
}

// Create appends a new post with the next free id. Only title and body are
// checked; values are stored as sent.
func (s *Service) Create(ctx context.Context, body post.Fields) (post.Post, error) {
	if !body.Filled("title") || !body.Filled("body") {
		return post.Post{}, badRequest(MsgRequiredFields)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Read(ctx)
	if err != nil {
		return post.Post{}, classifyRead(err)
	}

	created := post.New(nextID(posts), body.Writable(), s.now())
	posts = append(posts, created)

	if err := s.store.Write(ctx, posts); err != nil {
		return post.Post{}, classifyWrite(err)
	}

	s.publish(EventCreated, created)
	return created, nil
}

// Patch merges the title, body and author keys of body into the matching
// post and stamps updated_at. Other keys are dropped.
func (s *Service) Patch(ctx context.Context, idToken string, body post.Fields) (post.Post, error) {
	id, err := post.ParseID(idToken)
	if err != nil {
		return post.Post{}, badRequest(MsgInvalidQueryID)
	}
	u := body.Writable()
	if len(u) == 0 {
		return post.Post{}, badRequest(MsgEmptyUpdate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Read(ctx)
	if err != nil {
		return post.Post{}, classifyRead(err)
	}

	idx := indexOf(posts, id)
	if idx < 0 {
		return post.Post{}, notFound(post.FormatID(id))
	}

	updated := posts[idx].Merge(u, s.now())
	posts[idx] = updated

	if err := s.store.Write(ctx, posts); err != nil {
		return post.Post{}, classifyWrite(err)
	}

	s.publish(EventUpdated, updated)
	return updated, nil
}

// Delete removes the first post matching idToken and returns it.
func (s *Service) Delete(ctx context.Context, idToken string) (post.Post, error) {
	id, err := post.ParseID(idToken)
	if err != nil {
		return post.Post{}, badRequest(MsgInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Read(ctx)
	if err != nil {
		return post.Post{}, classifyRead(err)
	}

	idx := indexOf(posts, id)
	if idx < 0 {
		return post.Post{}, notFound(post.FormatID(id))
	}

	removed := posts[idx]
	remaining := make([]post.Post, 0, len(posts)-1)
	remaining = append(remaining, posts[:idx]...)
	remaining = append(remaining, posts[idx+1:]...)

	if err := s.store.Write(ctx, remaining); err != nil {
		return post.Post{}, classifyWrite(err)
	}

	s.publish(EventDeleted, removed)
	return removed, nil
}

func (s *Service) publish(eventType string, p post.Post) {
	log.Printf("[posts] %s id=%s", eventType, p.PostID)
	if s.events != nil {
		s.events.Publish(eventType, p)
	}
}

func indexOf(posts []post.Post, id float64) int {
	for i, p := range posts {
		if p.PostID.Matches(id) {
			return i
		}
	}
	return -1
}

// nextID is one more than the largest numeric id; invalid ids count as 0.
func nextID(posts []post.Post) float64 {
	var highest float64
	for _, p := range posts {
		if n := p.PostID.Number(); n > highest {
			highest = n
		}
	}
	return highest + 1
}
