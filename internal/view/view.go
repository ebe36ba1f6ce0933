// Package view resolves the gallery's navigation state into a renderable
// page: which studio, which session, and which slice of its images.
package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/seoulfie/drivegallery/internal/models"
)

// Control bounds and defaults for the sidebar widgets.
const (
	MinColumns     = 2
	MaxColumns     = 6
	DefaultColumns = 4

	MinPageSize     = 10
	MaxPageSize     = 100
	DefaultPageSize = 30
)

// State is the user's current selection. The zero value selects the first
// studio and session at page 1 with default controls.
type State struct {
	RootID    string
	SessionID string
	Search    string
	Page      int
	PageSize  int
	Columns   int
}

// Normalize clamps the control values into their allowed ranges.
func (s State) Normalize() State {
	if s.Columns == 0 {
		s.Columns = DefaultColumns
	}
	s.Columns = clamp(s.Columns, MinColumns, MaxColumns)

	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}
	s.PageSize = clamp(s.PageSize, MinPageSize, MaxPageSize)

	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// SelectRoot switches studio, resetting session selection and page.
func (s State) SelectRoot(rootID string) State {
	s.RootID = rootID
	s.SessionID = ""
	s.Page = 1
	return s
}

// SelectSession switches session, resetting the page.
func (s State) SelectSession(sessionID string) State {
	s.SessionID = sessionID
	s.Page = 1
	return s
}

// WithSearch changes the session filter text. Selection fallback happens
// during Render.
func (s State) WithSearch(search string) State {
	s.Search = strings.TrimSpace(search)
	return s
}

// PageInfo is the computed pagination for the current image list.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Start      int `json:"start"` // half-open slice [Start, End)
	End        int `json:"end"`
}

// Paginate computes the slice bounds for a page. The requested page is
// clamped into [1, totalPages], so growing the page size never leaves the
// view on a page past the end.
func Paginate(total, pageSize, page int) PageInfo {
	if pageSize < 1 {
		pageSize = 1
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page = clamp(page, 1, totalPages)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		Start:      start,
		End:        end,
	}
}

// SortSessionsDesc orders sessions newest-first by name, which works well
// with date-prefixed session names.
func SortSessionsDesc(sessions []models.Folder) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Name > sessions[j].Name
	})
}

// FilterSessions returns the sessions whose name contains search,
// case-insensitively. Empty search returns the input unchanged.
func FilterSessions(sessions []models.Folder, search string) []models.Folder {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return sessions
	}
	var out []models.Folder
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Name), search) {
			out = append(out, s)
		}
	}
	return out
}

// EmptyState marks a valid terminal state that halts rendering for the view.
type EmptyState string

const (
	NoSessions EmptyState = "no_sessions"
	NoMatches  EmptyState = "no_matches"
	NoImages   EmptyState = "no_images"
)

// RootEntry is one studio selector entry. A root id that does not resolve
// keeps its slot with the error text instead of crashing other selectors.
type RootEntry struct {
	Folder models.Folder `json:"folder"`
	Err    string        `json:"error,omitempty"`
}

// Page is the fully resolved view for one state.
type Page struct {
	State    State
	Roots    []RootEntry
	Root     models.Folder
	Sessions []models.Folder
	Session  models.Folder
	Empty    EmptyState
	Images   []models.ImageDescriptor
	PageInfo PageInfo

	// ImagesErr carries a failed image-list fetch for the selected
	// session without aborting the rest of the view.
	ImagesErr string
}

// Lister is the read surface the controller needs, normally the cached
// source layer.
type Lister interface {
	FolderName(ctx context.Context, folderID string) (string, error)
	ListFolders(ctx context.Context, parentID string) ([]models.Folder, error)
	ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error)
}

// Controller resolves states against the configured roots.
type Controller struct {
	src     Lister
	rootIDs []string
}

// NewController creates a controller over a fixed ordered set of root ids.
func NewController(src Lister, rootIDs []string) *Controller {
	return &Controller{src: src, rootIDs: rootIDs}
}

// Render resolves a state into a page. It is a pure function of the state
// and the (cached) source: invoked afresh on every interaction. Only an
// AuthError or a failure listing the selected root's sessions aborts the
// view; everything narrower is carried inside the page.
func (c *Controller) Render(ctx context.Context, state State) (*Page, error) {
	state = state.Normalize()
	page := &Page{State: state}

	// Resolve studio names. A bad id holds its selector slot with the
	// error; an auth failure aborts.
	for _, id := range c.rootIDs {
		name, err := c.src.FolderName(ctx, id)
		if err != nil {
			var authErr *models.AuthError
			if errors.As(err, &authErr) {
				return nil, err
			}
			page.Roots = append(page.Roots, RootEntry{
				Folder: models.Folder{ID: id, Name: id},
				Err:    err.Error(),
			})
			continue
		}
		page.Roots = append(page.Roots, RootEntry{Folder: models.Folder{ID: id, Name: name}})
	}
	sort.SliceStable(page.Roots, func(i, j int) bool {
		return page.Roots[i].Folder.Name < page.Roots[j].Folder.Name
	})

	root, ok := selectRoot(page.Roots, state.RootID)
	if !ok {
		return nil, fmt.Errorf("no accessible studio folders")
	}
	page.Root = root
	page.State.RootID = root.ID

	sessions, err := c.src.ListFolders(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", root.Name, err)
	}
	SortSessionsDesc(sessions)

	if len(sessions) == 0 {
		page.Empty = NoSessions
		return page, nil
	}

	page.Sessions = FilterSessions(sessions, state.Search)
	if len(page.Sessions) == 0 {
		page.Empty = NoMatches
		return page, nil
	}

	// Keep the selected session if it survived the filter, else fall
	// back to the first remaining match.
	session := page.Sessions[0]
	for _, s := range page.Sessions {
		if s.ID == state.SessionID {
			session = s
			break
		}
	}
	page.Session = session
	page.State.SessionID = session.ID

	images, err := c.src.ListImages(ctx, session.ID)
	if err != nil {
		page.ImagesErr = fmt.Sprintf("%s: %v", session.Name, err)
		return page, nil
	}
	if len(images) == 0 {
		page.Empty = NoImages
		return page, nil
	}

	pi := Paginate(len(images), state.PageSize, state.Page)
	page.PageInfo = pi
	page.State.Page = pi.Page
	page.Images = images[pi.Start:pi.End]
	return page, nil
}

func selectRoot(roots []RootEntry, rootID string) (models.Folder, bool) {
	if rootID != "" {
		for _, r := range roots {
			if r.Folder.ID == rootID && r.Err == "" {
				return r.Folder, true
			}
		}
	}
	for _, r := range roots {
		if r.Err == "" {
			return r.Folder, true
		}
	}
	return models.Folder{}, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
