package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-blog/backend/internal/model/post"
	postservice "github.com/zhouzirui/z-blog/backend/internal/service/post"
	"github.com/zhouzirui/z-blog/backend/pkg/utils"
)

// PostService 抽象帖子业务，便于测试与替换实现
type PostService interface {
	List(ctx context.Context) ([]post.Post, error)
	Get(ctx context.Context, idToken string) (post.Post, error)
	Create(ctx context.Context, body post.Fields) (post.Post, error)
	Patch(ctx context.Context, idToken string, body post.Fields) (post.Post, error)
	Delete(ctx context.Context, idToken string) (post.Post, error)
}

// maxBodyBytes caps create and patch payloads.
const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON object")

// Handler 帖子服务的HTTP处理器
type Handler struct {
	posts     PostService
	mountPath string
}

// New 创建帖子处理器。mountPath 是路由挂载前缀，用于生成 Location 头。
func New(posts PostService, mountPath string) *Handler {
	return &Handler{
		posts:     posts,
		mountPath: mountPath,
	}
}

// RegisterRoutes 注册帖子相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/posts", h.handleList)
	r.Post("/posts", h.handleCreate)
	r.Patch("/posts", h.handlePatch)
	r.Get("/posts/{id}", h.handleGet)
	r.Delete("/posts/{id}", h.handleDelete)
}

// DeleteResponse wraps the removed record.
type DeleteResponse struct {
	Deleted post.Post `json:"deleted"`
}

// handleList 列出所有帖子
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if posts == nil {
		posts = []post.Post{}
	}
	utils.RespondJSON(w, http.StatusOK, posts)
}

// handleGet 按 id 获取帖子
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	found, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, found)
}

// handleCreate 创建帖子
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	created, err := h.posts.Create(r.Context(), body)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", path.Join(h.mountPath, "posts", created.PostID.String()))
	utils.RespondJSON(w, http.StatusCreated, created)
}

// handlePatch 部分更新帖子，id 来自查询参数
func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	updated, err := h.posts.Patch(r.Context(), r.URL.Query().Get("id"), body)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

// handleDelete 删除帖子并返回被删除的记录
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.posts.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, DeleteResponse{Deleted: removed})
}

// decodeBody reads a single JSON object. Values are not type checked; an
// empty body yields no fields.
func decodeBody(w http.ResponseWriter, r *http.Request) (post.Fields, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var body post.Fields
	err := dec.Decode(&body)
	if errors.Is(err, io.EOF) {
		return nil, true
	}
	if err == nil {
		// Anything after the object, other than whitespace, is rejected.
		if _, err = dec.Token(); errors.Is(err, io.EOF) {
			return body, true
		}
		if err == nil {
			err = errTrailingData
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	utils.RespondError(w, http.StatusBadRequest, "invalid request body")
	return nil, false
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *postservice.Error
	if !errors.As(err, &opErr) {
		log.Printf("[posts] %s %s: unexpected error: %v", r.Method, r.URL.Path, err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := statusFor(opErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Printf("[posts] %s %s: %v", r.Method, r.URL.Path, err)
	}
	utils.RespondError(w, status, opErr.Message)
}

func statusFor(kind postservice.Kind) int {
	switch kind {
	case postservice.KindBadRequest:
		return http.StatusBadRequest
	case postservice.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
