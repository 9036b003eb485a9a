package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/csvimport"
	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/id"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/search"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// inviteCodeAttempts bounds retries when a generated invite code collides.
const inviteCodeAttempts = 5

// DatasetConfig holds dataset policy switches.
type DatasetConfig struct {
	// AutoNegativeLowScores pre-labels score 1-2 entries as negative when a
	// user joins a scored dataset.
	AutoNegativeLowScores bool
}

// DatasetService manages datasets, invites and membership.
type DatasetService struct {
	store    store.Store
	index    *search.SearchIndex
	perms    *shuffle.Cache
	sessions *labeling.SessionRegistry
	tracker  *labeling.ProgressTracker
	metrics  *metrics.LabelingMetrics
	cfg      DatasetConfig
	logger   *slog.Logger
}

// NewDatasetService creates a dataset service. index may be nil, in which
// case entries are not searchable.
func NewDatasetService(
	store store.Store,
	index *search.SearchIndex,
	perms *shuffle.Cache,
	sessions *labeling.SessionRegistry,
	tracker *labeling.ProgressTracker,
	cfg DatasetConfig,
	logger *slog.Logger,
) *DatasetService {
	return &DatasetService{
		store:    store,
		index:    index,
		perms:    perms,
		sessions: sessions,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMetrics attaches the collectors whose per-dataset series are dropped on delete.
func (s *DatasetService) SetMetrics(m *metrics.LabelingMetrics) {
	s.metrics = m
}

// UploadRequest describes a new dataset. File holds the CSV body.
type UploadRequest struct {
	Name         string              `json:"name" validate:"required,max=200"`
	Description  string              `json:"description" validate:"max=2000"`
	LabelingType domain.LabelingType `json:"labeling_type" validate:"required,labelingtype"`
	File         io.Reader           `json:"-"`
}

// UploadResult reports the created dataset and how the file was read.
type UploadResult struct {
	Dataset     *domain.Dataset `json:"dataset"`
	TextColumn  string          `json:"text_column"`
	ScoreColumn string          `json:"score_column,omitempty"`
	Skipped     int             `json:"skipped_rows"`
}

// Upload parses the CSV and creates the dataset with all its entries, the
// owner membership and the owner's progress row.
func (s *DatasetService) Upload(ctx context.Context, v labeling.Viewer, req UploadRequest) (*UploadResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.LabelingType == "" {
		req.LabelingType = domain.LabelingMultiClass
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.File == nil {
		return nil, domainerrors.Validation("file is required")
	}

	parsed, err := csvimport.Parse(req.File)
	if err != nil {
		return nil, csvError(err)
	}
	return s.create(ctx, v.UserID, req, parsed)
}

// ImportFile creates a dataset from a CSV on disk owned by ownerEmail. The
// dataset is named after the file.
func (s *DatasetService) ImportFile(ctx context.Context, path, ownerEmail string) (string, error) {
	owner, err := s.store.GetUserByEmail(ctx, domain.NormalizeEmail(ownerEmail))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", fmt.Errorf("import owner %s does not exist", ownerEmail)
		}
		return "", fmt.Errorf("lookup import owner: %w", err)
	}

	parsed, err := csvimport.ParseFile(path)
	if err != nil {
		return "", csvError(err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res, err := s.create(ctx, owner.ID, UploadRequest{
		Name:         name,
		Description:  "Imported from " + filepath.Base(path),
		LabelingType: domain.LabelingMultiClass,
	}, parsed)
	if err != nil {
		return "", err
	}
	return res.Dataset.ID, nil
}

func csvError(err error) error {
	switch {
	case errors.Is(err, csvimport.ErrNoHeader),
		errors.Is(err, csvimport.ErrNoRows),
		errors.Is(err, csvimport.ErrTooManyRows):
		return domainerrors.Validation(err.Error())
	default:
		return domainerrors.Validationf("could not read csv: %v", err)
	}
}

func (s *DatasetService) create(ctx context.Context, ownerID string, req UploadRequest, parsed *csvimport.Result) (*UploadResult, error) {
	datasetID, err := id.Generate(id.PrefixDataset)
	if err != nil {
		return nil, fmt.Errorf("generate dataset ID: %w", err)
	}

	entries := make([]*domain.Entry, len(parsed.Rows))
	for i, row := range parsed.Rows {
		entryID, err := id.Generate(id.PrefixEntry)
		if err != nil {
			return nil, fmt.Errorf("generate entry ID: %w", err)
		}
		entries[i] = &domain.Entry{
			ID:       entryID,
			Position: i,
			Text:     row.Text,
			Score:    row.Score,
		}
	}

	now := time.Now()
	ds := &domain.Dataset{
		Record:       domain.Record{ID: datasetID, CreatedAt: now, UpdatedAt: now},
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		OwnerID:      ownerID,
		IsActive:     true,
		LabelingType: req.LabelingType,
		HasScores:    parsed.HasScores(),
	}

	for attempt := 1; ; attempt++ {
		code, err := id.InviteCode()
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		ds.InviteCode = code

		err = s.store.CreateDataset(ctx, ds, entries)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrAlreadyExists) && attempt < inviteCodeAttempts {
			continue
		}
		return nil, domainerrors.Internal("failed to create dataset").WithCause(err)
	}

	s.indexEntries(ds.ID, entries)

	s.logger.Info("dataset created",
		"dataset_id", ds.ID,
		"owner_id", ownerID,
		"entries", ds.TotalEntries,
		"has_scores", ds.HasScores,
		"skipped", parsed.Skipped,
	)

	return &UploadResult{
		Dataset:     ds,
		TextColumn:  parsed.TextColumn,
		ScoreColumn: parsed.ScoreColumn,
		Skipped:     parsed.Skipped,
	}, nil
}

// indexEntries adds entries to the search index. Failures are logged; the
// index is rebuilt from the store on the next start when empty.
func (s *DatasetService) indexEntries(datasetID string, entries []*domain.Entry) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexDocuments(search.FromEntries(entries)); err != nil {
		s.logger.Warn("failed to index entries", "dataset_id", datasetID, "error", err)
	}
}

// ReindexIfEmpty fills an empty search index from the store.
func (s *DatasetService) ReindexIfEmpty(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	count, err := s.index.DocumentCount()
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	datasets, err := s.store.ListAllDatasets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list datasets: %w", err)
	}

	indexed := 0
	for _, ds := range datasets {
		var batch []*domain.Entry
		for e, err := range s.store.EachEntry(ctx, ds.ID) {
			if err != nil {
				return indexed, fmt.Errorf("read entries of %s: %w", ds.ID, err)
			}
			batch = append(batch, e)
		}
		if err := s.index.IndexDocuments(search.FromEntries(batch)); err != nil {
			return indexed, fmt.Errorf("index %s: %w", ds.ID, err)
		}
		indexed += len(batch)
	}

	if indexed > 0 {
		s.logger.Info("search index rebuilt", "datasets", len(datasets), "entries", indexed)
	}
	return indexed, nil
}

// DatasetDetail is a dataset with the caller's relationship to it.
type DatasetDetail struct {
	*domain.Dataset
	Role     domain.MemberRole `json:"role,omitempty"`
	Progress *domain.Progress  `json:"progress,omitempty"`
	// CanManage is false for plain members, whose copy has no invite code.
	CanManage bool `json:"can_manage"`
}

func (s *DatasetService) detail(ctx context.Context, v labeling.Viewer, ds *domain.Dataset) *DatasetDetail {
	d := &DatasetDetail{
		Dataset:   ds,
		CanManage: ds.CanManage(v.UserID, v.IsAdmin),
	}
	if !d.CanManage {
		redacted := *ds
		redacted.InviteCode = ""
		d.Dataset = &redacted
	}
	if m, err := s.store.GetMembership(ctx, ds.ID, v.UserID); err == nil {
		d.Role = m.Role
	}
	if p, err := s.store.GetProgress(ctx, ds.ID, v.UserID); err == nil {
		d.Progress = p
	}
	return d
}

// List returns the caller's datasets. Admins see every dataset.
func (s *DatasetService) List(ctx context.Context, v labeling.Viewer) ([]*DatasetDetail, error) {
	var (
		datasets []*domain.Dataset
		err      error
	)
	if v.IsAdmin {
		datasets, err = s.store.ListAllDatasets(ctx)
	} else {
		datasets, err = s.store.ListDatasetsForUser(ctx, v.UserID)
	}
	if err != nil {
		return nil, domainerrors.Internal("failed to list datasets").WithCause(err)
	}

	out := make([]*DatasetDetail, len(datasets))
	for i, ds := range datasets {
		out[i] = s.detail(ctx, v, ds)
	}
	return out, nil
}

// Get returns one dataset the caller can open.
func (s *DatasetService) Get(ctx context.Context, v labeling.Viewer, datasetID string) (*DatasetDetail, error) {
	ds, err := loadVisible(ctx, s.store, v, datasetID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, v, ds), nil
}

// UpdateRequest changes dataset metadata. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=2000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Update changes name, description or the active flag. Owner or admin only.
func (s *DatasetService) Update(ctx context.Context, v labeling.Viewer, datasetID string, req UpdateRequest) (*DatasetDetail, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if _, err := loadManaged(ctx, s.store, v, datasetID); err != nil {
		return nil, err
	}

	update := domain.DatasetUpdate{Name: req.Name, Description: req.Description, IsActive: req.IsActive}
	if update.Empty() {
		return nil, domainerrors.Validation("nothing to update")
	}

	ds, err := s.store.UpdateDataset(ctx, datasetID, update)
	if err != nil {
		return nil, datasetErr(err, "failed to update dataset")
	}

	s.logger.Info("dataset updated", "dataset_id", datasetID, "user_id", v.UserID)
	return s.detail(ctx, v, ds), nil
}

// Delete removes the dataset and everything under it, then drops its search
// documents, cached permutations and open sessions.
func (s *DatasetService) Delete(ctx context.Context, v labeling.Viewer, datasetID string) error {
	if _, err := loadManaged(ctx, s.store, v, datasetID); err != nil {
		return err
	}

	if err := s.store.DeleteDataset(ctx, datasetID); err != nil {
		return datasetErr(err, "failed to delete dataset")
	}

	s.perms.InvalidateDataset(datasetID)
	s.sessions.ForgetDataset(datasetID)
	if s.metrics != nil {
		s.metrics.ForgetDataset(datasetID)
	}
	if s.index != nil {
		if n, err := s.index.DeleteDataset(ctx, datasetID); err != nil {
			s.logger.Warn("failed to remove dataset from search index", "dataset_id", datasetID, "error", err)
		} else {
			s.logger.Debug("removed dataset documents", "dataset_id", datasetID, "documents", n)
		}
	}

	s.logger.Info("dataset deleted", "dataset_id", datasetID, "user_id", v.UserID)
	return nil
}

// RegenerateInvite replaces the invite code. Old codes stop working.
func (s *DatasetService) RegenerateInvite(ctx context.Context, v labeling.Viewer, datasetID string) (string, error) {
	if _, err := loadManaged(ctx, s.store, v, datasetID); err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		code, err := id.InviteCode()
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		err = s.store.SetInviteCode(ctx, datasetID, code)
		if err == nil {
			s.logger.Info("invite code regenerated", "dataset_id", datasetID)
			return code, nil
		}
		if errors.Is(err, store.ErrAlreadyExists) && attempt < inviteCodeAttempts {
			continue
		}
		return "", datasetErr(err, "failed to set invite code")
	}
}

// JoinResult reports what joining did.
type JoinResult struct {
	Dataset       *DatasetDetail `json:"dataset"`
	AlreadyMember bool           `json:"already_member"`
	// AutoLabeled counts low-score entries pre-labeled negative.
	AutoLabeled int `json:"auto_labeled"`
}

// Join adds the caller to the dataset behind an invite code. Joining twice is
// a no-op. On first join of a scored dataset, and when enabled, score 1-2
// entries are pre-labeled negative and progress is recounted; a later join
// retries the pre-labeling while the labeler has not started.
func (s *DatasetService) Join(ctx context.Context, v labeling.Viewer, inviteCode string) (*JoinResult, error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if !id.IsInviteCode(code) {
		return nil, domainerrors.Validation("invite_code is malformed")
	}

	ds, err := s.store.GetDatasetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrDatasetNotFound) {
			return nil, domainerrors.NotFound("invalid invite code")
		}
		return nil, domainerrors.Internal("failed to resolve invite code").WithCause(err)
	}
	if !ds.AcceptsLabelsFrom(v.UserID, v.IsAdmin) {
		return nil, domainerrors.DatasetInactive(ds.Name)
	}

	added, err := s.store.AddMember(ctx, &domain.Membership{
		DatasetID: ds.ID,
		UserID:    v.UserID,
		Role:      domain.MemberLabeler,
		JoinedAt:  time.Now(),
	})
	if err != nil {
		return nil, datasetErr(err, "failed to join dataset")
	}

	progress, err := s.tracker.EnsureExists(ctx, ds.ID, v.UserID, ds.TotalEntries)
	if err != nil {
		return nil, err
	}

	// A member whose earlier join failed before pre-labeling still has an
	// untouched progress row, so the policy is retried for them.
	pending := added || (ds.OwnerID != v.UserID && progress.State() == domain.ProgressNotStarted)

	result := &JoinResult{AlreadyMember: !added}
	if pending && s.cfg.AutoNegativeLowScores && ds.HasScores {
		n, err := s.autoLabelLowScores(ctx, ds.ID, v.UserID)
		if err != nil {
			return nil, err
		}
		result.AutoLabeled = n
	}

	if added {
		s.logger.Info("user joined dataset",
			"dataset_id", ds.ID,
			"user_id", v.UserID,
			"auto_labeled", result.AutoLabeled,
		)
	}

	result.Dataset = s.detail(ctx, v, ds)
	return result, nil
}

func (s *DatasetService) autoLabelLowScores(ctx context.Context, datasetID, userID string) (int, error) {
	ids, err := s.store.LowScoreEntryIDs(ctx, datasetID)
	if err != nil {
		return 0, domainerrors.Internal("failed to find low score entries").WithCause(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.store.InsertAutoLabels(ctx, datasetID, userID, ids, domain.LabelNegative)
	if err != nil {
		return 0, domainerrors.Internal("failed to pre-label entries").WithCause(err)
	}
	if _, err := s.tracker.Recount(ctx, datasetID, userID); err != nil {
		return n, err
	}
	return n, nil
}

// MembersProgress returns every member's progress. Owner or admin only.
func (s *DatasetService) MembersProgress(ctx context.Context, v labeling.Viewer, datasetID string) ([]*domain.MemberProgress, error) {
	if _, err := loadManaged(ctx, s.store, v, datasetID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, datasetID)
	if err != nil {
		return nil, datasetErr(err, "failed to list members")
	}
	return members, nil
}

// MyProgress returns the caller's progress, creating the row if needed.
func (s *DatasetService) MyProgress(ctx context.Context, v labeling.Viewer, datasetID string) (*domain.Progress, error) {
	ds, err := loadVisible(ctx, s.store, v, datasetID)
	if err != nil {
		return nil, err
	}
	return s.tracker.EnsureExists(ctx, ds.ID, v.UserID, ds.TotalEntries)
}

// SearchRequest is a full-text query within one dataset.
type SearchRequest struct {
	Query  string `json:"q" validate:"required,max=500"`
	Scores []int  `json:"scores,omitempty" validate:"dive,min=1,max=5"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
	Offset int    `json:"offset" validate:"gte=0"`
}

// Search runs a full-text query over the dataset's entries.
func (s *DatasetService) Search(ctx context.Context, v labeling.Viewer, datasetID string, req SearchRequest) (*search.Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if _, err := loadVisible(ctx, s.store, v, datasetID); err != nil {
		return nil, err
	}
	if s.index == nil {
		return nil, domainerrors.Internal("search is not available")
	}

	res, err := s.index.Search(ctx, search.Params{
		DatasetID: datasetID,
		Query:     req.Query,
		Scores:    req.Scores,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, domainerrors.Internal("search failed").WithCause(err)
	}
	return res, nil
}
