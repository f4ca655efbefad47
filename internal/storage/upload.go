package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

// UploadType tags what an upload is for. Route middleware sets it before
// the handler that reads the multipart body runs.
type UploadType string

const (
	UploadPaperFile       UploadType = "paper-file"
	UploadPaperThumbnail  UploadType = "paper-thumbnail"
	UploadQuestionImage   UploadType = "question-image"
	UploadOptionImage     UploadType = "option-image"
	UploadAnswerFile      UploadType = "answer-file"
	UploadReviewFile      UploadType = "review-file"
	UploadTuteFile        UploadType = "tute-file"
	UploadTuteThumbnail   UploadType = "tute-thumbnail"
	UploadVideoThumbnail  UploadType = "video-thumbnail"
	UploadCourseThumbnail UploadType = "course-thumbnail"
	UploadProfileImage    UploadType = "profile-image"
)

const mb = 1 << 20

var (
	imageExts    = []string{"jpg", "jpeg", "png", "gif", "webp"}
	pdfExts      = []string{"pdf"}
	documentExts = append([]string{"pdf", "doc", "docx"}, imageExts...)
)

// Rule is the destination and acceptance policy of one upload type.
type Rule struct {
	Dir      string
	Exts     []string
	MaxBytes int64
}

var rules = map[UploadType]Rule{
	UploadPaperFile:       {Dir: "papers/pdfs", Exts: pdfExts, MaxBytes: 20 * mb},
	UploadPaperThumbnail:  {Dir: "papers/thumbnails", Exts: imageExts, MaxBytes: 5 * mb},
	UploadQuestionImage:   {Dir: "papers/questions", Exts: imageExts, MaxBytes: 5 * mb},
	UploadOptionImage:     {Dir: "papers/options", Exts: imageExts, MaxBytes: 5 * mb},
	UploadAnswerFile:      {Dir: "answers/submissions", Exts: documentExts, MaxBytes: 20 * mb},
	UploadReviewFile:      {Dir: "answers/reviews", Exts: documentExts, MaxBytes: 20 * mb},
	UploadTuteFile:        {Dir: "tutes/files", Exts: []string{"pdf", "ppt", "pptx"}, MaxBytes: 50 * mb},
	UploadTuteThumbnail:   {Dir: "tutes/thumbnails", Exts: imageExts, MaxBytes: 5 * mb},
	UploadVideoThumbnail:  {Dir: "videos/thumbnails", Exts: imageExts, MaxBytes: 5 * mb},
	UploadCourseThumbnail: {Dir: "courses/thumbnails", Exts: imageExts, MaxBytes: 5 * mb},
	UploadProfileImage:    {Dir: "users/profiles", Exts: imageExts, MaxBytes: 2 * mb},
}

// UploadTypes lists every known tag in a stable order.
func UploadTypes() []UploadType {
	out := make([]UploadType, 0, len(rules))
	for t := range rules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseUploadType accepts only known tags.
func ParseUploadType(s string) (UploadType, bool) {
	t := UploadType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := rules[t]
	return t, ok
}

// Route picks the destination directory and policy for a file.
// paperType only matters for paper thumbnails.
func Route(tag UploadType, field, paperType string) Rule {
	if r, ok := rules[tag]; ok {
		if tag == UploadPaperThumbnail {
			r.Dir = path.Join(r.Dir, thumbnailBucket(paperType))
		}
		return r
	}
	// no tag: infer intent from the multipart field name
	switch strings.ToLower(field) {
	case "thumbnail":
		return Rule{Dir: "misc/thumbnails", Exts: imageExts, MaxBytes: 5 * mb}
	case "answerfile":
		return rules[UploadAnswerFile]
	case "reviewfile":
		return rules[UploadReviewFile]
	case "image":
		return Rule{Dir: "misc/images", Exts: imageExts, MaxBytes: 5 * mb}
	case "file":
		return Rule{Dir: "misc/files", Exts: documentExts, MaxBytes: 20 * mb}
	}
	return Rule{Dir: "misc/other", Exts: documentExts, MaxBytes: 10 * mb}
}

func thumbnailBucket(paperType string) string {
	switch strings.ToLower(strings.TrimSpace(paperType)) {
	case "mcq":
		return "mcq"
	case "structure-essay":
		return "structure-essay"
	}
	return "other"
}

// SanitizeExt lower-cases an extension and keeps [a-z0-9], at most 8 chars.
func SanitizeExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	var b strings.Builder
	for _, c := range ext {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "bin"
	}
	return b.String()
}

// ---- upload type in context ----

type ctxKey struct{}

func WithUploadType(ctx context.Context, t UploadType) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

func UploadTypeFromContext(ctx context.Context) UploadType {
	t, _ := ctx.Value(ctxKey{}).(UploadType)
	return t
}

// Tag is route middleware that sets the upload type for the handler chain.
func Tag(t UploadType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUploadType(r.Context(), t)))
		})
	}
}

// ---- uploader ----

type Saved struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	OriginalName string `json:"originalName"`
}

type Uploader struct {
	store BlobStore
	now   func() time.Time
	rand  io.Reader
}

func NewUploader(store BlobStore) *Uploader {
	return &Uploader{store: store, now: time.Now, rand: rand.Reader}
}

func (u *Uploader) Store() BlobStore { return u.store }

// Name builds "<unix-millis>-<16 hex>.<ext>".
func (u *Uploader) Name(original string) (string, error) {
	var b [8]byte
	if _, err := io.ReadFull(u.rand, b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s.%s", u.now().UnixMilli(), hex.EncodeToString(b[:]), SanitizeExt(original)), nil
}

func allowed(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// Save validates and stores one multipart file under
// "<dir>/<uploader id>/<name>". Validation failures are
// common.ValidationError values.
func (u *Uploader) Save(ctx context.Context, fh *multipart.FileHeader, paperType string) (Saved, error) {
	tag := UploadTypeFromContext(ctx)
	rule := Route(tag, fieldOf(fh), paperType)
	ext := SanitizeExt(fh.Filename)
	if !allowed(rule.Exts, ext) {
		return Saved{}, common.NewValidationError(fmt.Sprintf("file %q: type .%s not allowed (allowed: %s)",
			fh.Filename, ext, strings.Join(rule.Exts, ", ")))
	}
	if rule.MaxBytes > 0 && fh.Size > rule.MaxBytes {
		return Saved{}, common.NewValidationError(fmt.Sprintf("file %q exceeds %d MB", fh.Filename, rule.MaxBytes/mb))
	}
	name, err := u.Name(fh.Filename)
	if err != nil {
		return Saved{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return Saved{}, err
	}
	defer f.Close()

	key, err := u.store.Put(path.Join(rule.Dir, ownerDir(rbac.SubjectFromContext(ctx)), name), f)
	if err != nil {
		return Saved{}, fmt.Errorf("store upload: %w", err)
	}
	return Saved{Key: key, URL: u.store.URL(key), Size: fh.Size, OriginalName: fh.Filename}, nil
}

// ownerDir keeps ids that are safe as a single path segment.
func ownerDir(id string) string {
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, c := range id {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return ""
		}
	}
	return id
}

// Attachable reports whether u may be recorded on a document as a file of
// upload type t. Empty and external URLs may. A file served by this store
// must sit in t's directory, in the folder of one of owners.
func Attachable(u string, t UploadType, owners ...string) bool {
	if u == "" {
		return true
	}
	key := KeyFromURL(u)
	if key == "" {
		return !strings.Contains(u, PublicPrefix)
	}
	rule, ok := rules[t]
	if !ok || !strings.HasPrefix(key, rule.Dir+"/") {
		return false
	}
	folder := path.Base(path.Dir(key))
	for _, o := range owners {
		if o != "" && o == folder {
			return true
		}
	}
	return false
}

// SaveField stores the first file of a multipart field, tagging it with t.
// A missing field returns ok=false and no error.
func (u *Uploader) SaveField(ctx context.Context, form *multipart.Form, field string, t UploadType, paperType string) (Saved, bool, error) {
	if form == nil || len(form.File[field]) == 0 {
		return Saved{}, false, nil
	}
	fh := form.File[field][0]
	s, err := u.Save(WithUploadType(ctx, t), withField(fh, field), paperType)
	if err != nil {
		return Saved{}, false, err
	}
	return s, true, nil
}

// Discard removes files stored earlier in a request that later failed.
func (u *Uploader) Discard(saved ...Saved) {
	for _, s := range saved {
		if s.Key != "" {
			_ = u.store.Delete(s.Key)
		}
	}
}

// multipart.FileHeader does not record its form field, so the fallback
// route reads it from the header map where withField stored it.
const fieldHeader = "X-Form-Field"

func withField(fh *multipart.FileHeader, field string) *multipart.FileHeader {
	if fh.Header == nil {
		fh.Header = make(map[string][]string)
	}
	fh.Header.Set(fieldHeader, field)
	return fh
}

func fieldOf(fh *multipart.FileHeader) string {
	if fh.Header == nil {
		return ""
	}
	if f := fh.Header.Get(fieldHeader); f != "" {
		return f
	}
	// Content-Disposition: form-data; name="field"; filename="..."
	cd := fh.Header.Get("Content-Disposition")
	for _, part := range strings.Split(cd, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "name=") {
			return strings.Trim(strings.TrimPrefix(part, "name="), `"`)
		}
	}
	return ""
}
