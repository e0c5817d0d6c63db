// Package blog serves the public blog and its audited back office. Post
// bodies are sanitized before they are stored.
package blog

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	blogstore "github.com/dalemusser/tourdesk/internal/app/store/blog"
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/app/system/slug"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit  = 10
	featuredLimit = 6
	excerptLen    = 300
)

type Handler struct {
	deps  *entityapi.Deps
	store *blogstore.Store
	now   func() time.Time
}

func NewHandler(deps *entityapi.Deps, store *blogstore.Store) *Handler {
	return &Handler{deps: deps, store: store, now: time.Now}
}

// PostView is a post joined with its author.
type PostView struct {
	models.BlogPost
	Author *models.UserRef `json:"author"`
}

type createInput struct {
	Title      string   `json:"title" validate:"required,notblank,min=3,max=200"`
	Excerpt    string   `json:"excerpt" validate:"max=500"`
	Content    string   `json:"content" validate:"required,notblank,max=100000"`
	CoverImage string   `json:"coverImage" validate:"omitempty,httpurl"`
	Category   string   `json:"category" validate:"max=100"`
	Tags       []string `json:"tags" validate:"max=20,dive,notblank,max=50"`
	Status     string   `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured   bool     `json:"featured"`
}

type updateInput struct {
	Title      *string   `json:"title" validate:"omitempty,notblank,min=3,max=200"`
	Excerpt    *string   `json:"excerpt" validate:"omitempty,max=500"`
	Content    *string   `json:"content" validate:"omitempty,notblank,max=100000"`
	CoverImage *string   `json:"coverImage" validate:"omitempty,httpurl"`
	Category   *string   `json:"category" validate:"omitempty,max=100"`
	Tags       *[]string `json:"tags" validate:"omitempty,max=20,dive,notblank,max=50"`
	Status     *string   `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured   *bool     `json:"featured"`
}

func snapshot(p *models.BlogPost) map[string]any {
	return map[string]any{
		"title":       p.Title,
		"slug":        p.Slug,
		"status":      p.Status,
		"featured":    p.Featured,
		"category":    p.Category,
		"excerpt":     p.Excerpt,
		"content":     p.Content,
		"publishedAt": entityapi.TimeValue(p.PublishedAt),
	}
}

// normalizeTags folds tags for matching and drops duplicates.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		f := text.Fold(strings.TrimSpace(t))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// excerptFrom derives a plain-text excerpt from sanitized content.
func excerptFrom(content string) string {
	plain := strings.Join(strings.Fields(htmlsanitize.StripTags(content)), " ")
	if utf8.RuneCountInString(plain) <= excerptLen {
		return plain
	}
	r := []rune(plain)
	return strings.TrimSpace(string(r[:excerptLen])) + "..."
}

func (h *Handler) ops() entityapi.Ops[models.BlogPost] {
	return entityapi.Ops[models.BlogPost]{
		EntityType: audit.EntityBlogPost,
		Get:        h.store.GetByID,
		Update:     h.store.UpdateFields,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
		Prepare: func(p *models.BlogPost, set bson.M) bson.M {
			if status, ok := set["status"].(string); ok && p.PublishedAt == nil {
				if pa := entityapi.PublishedAt(status, nil, h.now()); pa != nil {
					set["published_at"] = pa
				}
			}
			return set
		},
	}
}

func (h *Handler) views(ctx context.Context, posts []models.BlogPost) []PostView {
	ids := make([]primitive.ObjectID, len(posts))
	for i, p := range posts {
		ids[i] = p.AuthorID
	}
	refs := h.deps.Refs(ctx, ids...)
	out := make([]PostView, len(posts))
	for i, p := range posts {
		out[i] = PostView{BlogPost: p, Author: refs[p.AuthorID]}
	}
	return out
}

func (h *Handler) view(ctx context.Context, p *models.BlogPost) PostView {
	return h.views(ctx, []models.BlogPost{*p})[0]
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listquery.Params, f sluggable.Filter) {
	f.Search = p.Search
	f.SearchFields = blogstore.SearchFields
	f.Featured = p.Featured
	f.Equals = map[string]string{
		"category": p.Category,
		"tags":     text.Fold(p.Tag),
	}
	items, total, err := h.store.List(r.Context(), f.BSON(), blogstore.Sort, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r.Context(), items), p, total))
}

// ListPublic handles GET /api/blog/public (search, category, tag, featured).
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: models.StatusPublished})
}

// Featured handles GET /api/blog/public/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: featuredLimit})
	if !ok {
		return
	}
	yes := true
	p.Featured = &yes
	h.list(w, r, p, sluggable.Filter{Status: models.StatusPublished})
}

// GetPublic handles GET /api/blog/public/{slug} and counts the view.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.ViewBySlug(r.Context(), chi.URLParam(r, "slug"), bson.M{"status": models.StatusPublished})
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), p))
}

// List handles GET /api/blog.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit, Statuses: models.PublicationStatuses()})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: p.Status})
}

// Stats handles GET /api/blog/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), blogstore.StatsOptions)
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, st)
}

// Get handles GET /api/blog/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), p))
}

// Create handles POST /api/blog. The caller becomes the author.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}

	now := h.now().UTC()
	content := htmlsanitize.RichText(in.Content)
	p := models.BlogPost{
		ID:         primitive.NewObjectID(),
		Title:      strings.TrimSpace(in.Title),
		Excerpt:    strings.TrimSpace(in.Excerpt),
		Content:    content,
		CoverImage: in.CoverImage,
		Category:   strings.TrimSpace(in.Category),
		Tags:       normalizeTags(in.Tags),
		Status:     in.Status,
		Featured:   in.Featured,
		AuthorID:   authz.ActorID(r),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if p.Excerpt == "" {
		p.Excerpt = excerptFrom(content)
	}
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	p.PublishedAt = entityapi.PublishedAt(p.Status, nil, now)

	err := h.deps.CommitSlugged(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		s, err := h.store.ResolveSlug(ctx, p.Title, nil)
		if err != nil {
			return auditlog.Entry{}, err
		}
		p.Slug = s
		if err := h.store.Insert(ctx, &p); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    p.AuthorID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityBlogPost,
			EntityID:   p.ID,
			NewValues:  snapshot(&p),
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.Created(w, h.view(r.Context(), &p))
}

func (in updateInput) set() bson.M {
	set := bson.M{}
	if in.Title != nil {
		set["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Excerpt != nil {
		set["excerpt"] = strings.TrimSpace(*in.Excerpt)
	}
	if in.Content != nil {
		set["content"] = htmlsanitize.RichText(*in.Content)
	}
	if in.CoverImage != nil {
		set["cover_image"] = *in.CoverImage
	}
	if in.Category != nil {
		set["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		set["tags"] = normalizeTags(*in.Tags)
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	return set
}

// Update handles PUT /api/blog/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	var in updateInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}

	set := in.set()
	status := existing.Status
	if in.Status != nil {
		status = *in.Status
	}
	if existing.PublishedAt == nil {
		if pa := entityapi.PublishedAt(status, nil, h.now()); pa != nil {
			set["published_at"] = pa
		}
	}
	regenerate := slug.NeedsRegeneration(in.Title, existing.Title)

	var updated *models.BlogPost
	write := func(ctx context.Context) (auditlog.Entry, error) {
		if regenerate {
			s, err := h.store.ResolveSlug(ctx, *in.Title, &id)
			if err != nil {
				return auditlog.Entry{}, err
			}
			set["slug"] = s
		}
		var err error
		if updated, err = h.store.UpdateFields(ctx, id, set); err != nil {
			return auditlog.Entry{}, err
		}
		oldV, newV := auditlog.Changes(snapshot(existing), snapshot(updated))
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionUpdate,
			EntityType: audit.EntityBlogPost,
			EntityID:   id,
			OldValues:  oldV,
			NewValues:  newV,
		}, nil
	}
	if regenerate {
		err = h.deps.CommitSlugged(r.Context(), r, write)
	} else {
		err = h.deps.Commit(r.Context(), r, write)
	}
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), updated))
}

// Delete handles DELETE /api/blog/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.Message(w, "Blog post deleted successfully")
}

// Bulk handles PUT /api/blog/bulk.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var in entityapi.BulkInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	set, ids, errs := in.Check(models.PublicationStatuses())
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}
	res, err := entityapi.BulkUpdate(r.Context(), h.deps, r, h.ops(), ids, set)
	if err != nil {
		h.deps.Fail(w, r, err, "Blog post")
		return
	}
	jsonutil.OK(w, res)
}
