package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

const (
	uploadKindStudents = "students"
	uploadKindPictures = "pictures"
	sniffLength        = 512
)

var (
	requiredStudentColumns = []string{"username", "firstname", "lastname", "email"}
	usernamePattern        = regexp.MustCompile(`^[a-z0-9._@-]+$`)
	pictureExtensions      = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	pictureMIMETypes       = []string{"image/jpeg", "image/png", "image/gif"}
)

type importRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	IsTenantMember(ctx context.Context, tenantID, userID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	CreateWithMembership(ctx context.Context, tenantID int64, student models.NewStudent) (int64, error)
	UpdateImported(ctx context.Context, tenantID, id int64, student models.NewStudent) error
	SetPicture(ctx context.Context, id, picture int64) error
}

type pictureStorage interface {
	Save(filename string, data []byte) (string, error)
}

// UploadConfig bounds bulk imports.
type UploadConfig struct {
	MaxCSVBytes   int64
	MaxZIPBytes   int64
	MaxImageBytes int64
	PictureSize   int
	ErrorLimit    int
	BcryptCost    int
}

// UploadFile is a received multipart file.
type UploadFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// ImportOptions are the per-request import switches.
type ImportOptions struct {
	UpdateExisting bool
}

// StudentRow is one line of the student import CSV.
type StudentRow struct {
	Username  string `csv:"username" validate:"required,max=100,username"`
	FirstName string `csv:"firstname" validate:"required,max=100"`
	LastName  string `csv:"lastname" validate:"required,max=100"`
	Email     string `csv:"email" validate:"required,email,max=100"`
	Password  string `csv:"password" validate:"omitempty,min=8,max=72"`
	Cohort    string `csv:"cohort" validate:"omitempty,max=254"`
}

// UploadService imports students from CSV and profile pictures from ZIP archives.
// Each row or entry commits on its own; failures are collected in the summary.
type UploadService struct {
	repo      importRepository
	cohorts   cohortRepository
	storage   pictureStorage
	metrics   *MetricsService
	validator *validator.Validate
	cfg       UploadConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewUploadService constructs an UploadService. Import rows are checked by a
// validator of its own that carries the "username" rule.
func NewUploadService(repo importRepository, cohorts cohortRepository, storage pictureStorage, metrics *MetricsService, cfg UploadConfig, logger *zap.Logger) (*UploadService, error) {
	validate := validator.New()
	err := validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("register username validation: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCSVBytes <= 0 {
		cfg.MaxCSVBytes = 5 << 20
	}
	if cfg.MaxZIPBytes <= 0 {
		cfg.MaxZIPBytes = 50 << 20
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 5 << 20
	}
	if cfg.PictureSize <= 0 {
		cfg.PictureSize = 256
	}
	if cfg.ErrorLimit <= 0 {
		cfg.ErrorLimit = 20
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &UploadService{
		repo:      repo,
		cohorts:   cohorts,
		storage:   storage,
		metrics:   metrics,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

type batch struct {
	kind    string
	summary models.UploadSummary
	limit   int
	metrics *MetricsService
}

func (s *UploadService) newBatch(kind string) *batch {
	return &batch{
		kind:    kind,
		summary: models.UploadSummary{BatchID: uuid.NewString(), ErrorMessages: []string{}},
		limit:   s.cfg.ErrorLimit,
		metrics: s.metrics,
	}
}

func (b *batch) record(outcome models.RowOutcome) {
	switch outcome {
	case models.RowCreated:
		b.summary.Created++
	case models.RowUpdated:
		b.summary.Updated++
	case models.RowSkipped:
		b.summary.Skipped++
	}
	b.metrics.RecordUploadRow(b.kind, string(outcome))
}

func (b *batch) fail(label, msg string) {
	b.summary.Errors++
	if len(b.summary.ErrorMessages) < b.limit {
		b.summary.ErrorMessages = append(b.summary.ErrorMessages, label+": "+msg)
	}
	b.metrics.RecordUploadRow(b.kind, string(models.RowFailed))
}

// rowError is a row level failure whose message is safe to show.
type rowError struct{ msg string }

func (e rowError) Error() string { return e.msg }

func rowErrorf(format string, args ...interface{}) error {
	return rowError{msg: fmt.Sprintf(format, args...)}
}

// ImportStudents creates or updates tenant students from a CSV file.
func (s *UploadService) ImportStudents(ctx context.Context, tenantID int64, file UploadFile, opts ImportOptions) (*models.UploadSummary, error) {
	data, err := readUpload(file, map[string]bool{".csv": true}, []string{"text/"}, s.cfg.MaxCSVBytes)
	if err != nil {
		return nil, err
	}
	rows, err := parseStudentCSV(data)
	if err != nil {
		return nil, err
	}

	b := s.newBatch(uploadKindStudents)
	seenUsernames := make(map[string]int, len(rows))
	seenEmails := make(map[string]int, len(rows))
	cohortIDs := map[string]*int64{}
	for i, row := range rows {
		line := i + 2
		label := fmt.Sprintf("row %d", line)
		row = normalizeRow(row)

		if prev, ok := seenUsernames[row.Username]; ok && row.Username != "" {
			b.fail(label, fmt.Sprintf("duplicate username %q (also on row %d)", row.Username, prev))
			continue
		}
		if prev, ok := seenEmails[row.Email]; ok && row.Email != "" {
			b.fail(label, fmt.Sprintf("duplicate email %q (also on row %d)", row.Email, prev))
			continue
		}
		seenUsernames[row.Username] = line
		seenEmails[row.Email] = line

		outcome, err := s.importRow(ctx, tenantID, row, opts, cohortIDs)
		if err != nil {
			var re rowError
			if errors.As(err, &re) {
				b.fail(label, re.msg)
			} else {
				s.logger.Warn("student import row failed", zap.String("batch_id", b.summary.BatchID), zap.Int("row", line), zap.Error(err))
				b.fail(label, "could not be saved")
			}
			continue
		}
		b.record(outcome)
	}

	s.logger.Info("student import finished",
		zap.String("batch_id", b.summary.BatchID),
		zap.Int64("tenant_id", tenantID),
		zap.Int("created", b.summary.Created),
		zap.Int("updated", b.summary.Updated),
		zap.Int("skipped", b.summary.Skipped),
		zap.Int("errors", b.summary.Errors),
	)
	return &b.summary, nil
}

func (s *UploadService) importRow(ctx context.Context, tenantID int64, row StudentRow, opts ImportOptions, cohortIDs map[string]*int64) (models.RowOutcome, error) {
	if err := s.validator.Struct(row); err != nil {
		return "", rowError{msg: describeValidation(err)}
	}

	var cohortID *int64
	if row.Cohort != "" {
		key := strings.ToLower(row.Cohort)
		id, cached := cohortIDs[key]
		if !cached {
			cohort, err := s.cohorts.FindByName(ctx, tenantID, row.Cohort)
			if err != nil {
				return "", err
			}
			if cohort != nil {
				id = &cohort.ID
			}
			cohortIDs[key] = id
		}
		if id == nil {
			return "", rowErrorf("unknown cohort %q", row.Cohort)
		}
		cohortID = id
	}

	existing, err := s.repo.FindByUsername(ctx, row.Username)
	if err != nil {
		return "", err
	}
	student := models.NewStudent{
		Username:  row.Username,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		CohortID:  cohortID,
	}

	if existing != nil {
		member, err := s.repo.IsTenantMember(ctx, tenantID, existing.ID)
		if err != nil {
			return "", err
		}
		if !member {
			return "", rowErrorf("username %q is already taken", row.Username)
		}
		if !opts.UpdateExisting {
			return models.RowSkipped, nil
		}
		if taken, err := s.repo.ExistsByEmail(ctx, row.Email, existing.ID); err != nil {
			return "", err
		} else if taken {
			return "", rowErrorf("email %q is already in use", row.Email)
		}
		if row.Password != "" {
			if student.PasswordHash, err = s.hash(row.Password); err != nil {
				return "", err
			}
		}
		if err := s.repo.UpdateImported(ctx, tenantID, existing.ID, student); err != nil {
			return "", err
		}
		return models.RowUpdated, nil
	}

	if taken, err := s.repo.ExistsByEmail(ctx, row.Email, 0); err != nil {
		return "", err
	} else if taken {
		return "", rowErrorf("email %q is already in use", row.Email)
	}
	password := row.Password
	if password == "" {
		password = uuid.NewString()
	}
	if student.PasswordHash, err = s.hash(password); err != nil {
		return "", err
	}
	if _, err := s.repo.CreateWithMembership(ctx, tenantID, student); err != nil {
		return "", err
	}
	return models.RowCreated, nil
}

func (s *UploadService) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// ImportPictures stores a square thumbnail for every <username>.<ext> entry of a ZIP archive.
func (s *UploadService) ImportPictures(ctx context.Context, tenantID int64, file UploadFile) (*models.UploadSummary, error) {
	data, err := readUpload(file, map[string]bool{".zip": true}, []string{"application/zip", "application/x-zip-compressed", "application/octet-stream"}, s.cfg.MaxZIPBytes)
	if err != nil {
		return nil, err
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a valid zip archive")
	}

	b := s.newBatch(uploadKindPictures)
	for _, entry := range archive.File {
		name := entry.Name
		base := path.Base(name)
		if entry.FileInfo().IsDir() || strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, ".") {
			continue
		}
		outcome, err := s.importPicture(ctx, tenantID, entry)
		if err != nil {
			var re rowError
			if errors.As(err, &re) {
				b.fail(base, re.msg)
			} else {
				s.logger.Warn("picture import failed", zap.String("batch_id", b.summary.BatchID), zap.String("entry", name), zap.Error(err))
				b.fail(base, "could not be saved")
			}
			continue
		}
		b.record(outcome)
	}

	s.logger.Info("picture import finished",
		zap.String("batch_id", b.summary.BatchID),
		zap.Int64("tenant_id", tenantID),
		zap.Int("created", b.summary.Created),
		zap.Int("updated", b.summary.Updated),
		zap.Int("errors", b.summary.Errors),
	)
	return &b.summary, nil
}

func (s *UploadService) importPicture(ctx context.Context, tenantID int64, entry *zip.File) (models.RowOutcome, error) {
	base := path.Base(entry.Name)
	ext := strings.ToLower(path.Ext(base))
	if !pictureExtensions[ext] {
		return "", rowErrorf("unsupported file type %q", ext)
	}
	if entry.UncompressedSize64 > uint64(s.cfg.MaxImageBytes) {
		return "", rowErrorf("image exceeds %d bytes", s.cfg.MaxImageBytes)
	}
	username := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", rowErrorf("no user with username %q", username)
	}
	member, err := s.repo.IsTenantMember(ctx, tenantID, user.ID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", rowErrorf("user %q does not belong to this school", username)
	}

	rc, err := entry.Open()
	if err != nil {
		return "", rowErrorf("cannot read entry: %v", err)
	}
	raw, err := io.ReadAll(io.LimitReader(rc, s.cfg.MaxImageBytes+1))
	rc.Close()
	if err != nil {
		return "", rowErrorf("cannot read entry: %v", err)
	}
	if int64(len(raw)) > s.cfg.MaxImageBytes {
		return "", rowErrorf("image exceeds %d bytes", s.cfg.MaxImageBytes)
	}
	if !matchesMIME(raw, pictureMIMETypes) {
		return "", rowErrorf("content is not a jpeg, png or gif image")
	}

	thumb, err := s.thumbnail(raw)
	if err != nil {
		return "", rowErrorf("cannot decode image: %v", err)
	}
	// The file is only written once the account row accepted the new revision.
	if err := s.repo.SetPicture(ctx, user.ID, s.now().Unix()); err != nil {
		return "", err
	}
	if _, err := s.storage.Save(fmt.Sprintf("%d.png", user.ID), thumb); err != nil {
		if rerr := s.repo.SetPicture(ctx, user.ID, user.Picture); rerr != nil {
			s.logger.Error("picture revision not restored", zap.Int64("user_id", user.ID), zap.Error(rerr))
		}
		return "", err
	}
	if user.Picture == 0 {
		return models.RowCreated, nil
	}
	return models.RowUpdated, nil
}

func (s *UploadService) thumbnail(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fill(img, s.cfg.PictureSize, s.cfg.PictureSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readUpload enforces extension, size and sniffed content type before buffering the file.
func readUpload(file UploadFile, extensions map[string]bool, mimes []string, max int64) ([]byte, error) {
	if file.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if !extensions[strings.ToLower(path.Ext(file.Filename))] {
		return nil, appErrors.ErrUnsupportedMediaType
	}
	if file.Size > max {
		return nil, appErrors.ErrPayloadTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file.Content, max+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if int64(len(data)) > max {
		return nil, appErrors.ErrPayloadTooLarge
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if !matchesMIME(data, mimes) {
		return nil, appErrors.ErrUnsupportedMediaType
	}
	return data, nil
}

func matchesMIME(data []byte, allowed []string) bool {
	sniff := data
	if len(sniff) > sniffLength {
		sniff = sniff[:sniffLength]
	}
	detected := http.DetectContentType(sniff)
	for _, prefix := range allowed {
		if strings.HasPrefix(detected, prefix) {
			return true
		}
	}
	return false
}

// recordReader feeds pre-read records to gocsv.
type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}

// parseStudentCSV normalises the header row and decodes the data rows.
func parseStudentCSV(data []byte) ([]StudentRow, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed csv file")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv file has no header row")
	}

	header := records[0]
	present := make(map[string]bool, len(header))
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
		present[header[i]] = true
	}
	var missing []string
	for _, col := range requiredStudentColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required columns: "+strings.Join(missing, ", "))
	}

	var rows []StudentRow
	if len(records) == 1 {
		return rows, nil
	}
	for i := 1; i < len(records); i++ {
		for len(records[i]) < len(header) {
			records[i] = append(records[i], "")
		}
	}
	if err := gocsv.UnmarshalCSV(&recordReader{records: records}, &rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed csv file")
	}
	return rows, nil
}

func normalizeRow(row StudentRow) StudentRow {
	row.Username = strings.ToLower(strings.TrimSpace(row.Username))
	row.FirstName = strings.TrimSpace(row.FirstName)
	row.LastName = strings.TrimSpace(row.LastName)
	row.Email = strings.ToLower(strings.TrimSpace(row.Email))
	row.Cohort = strings.TrimSpace(row.Cohort)
	return row
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid row"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" is not a valid email address")
		case "username":
			parts = append(parts, field+" may only contain lowercase letters, digits and . _ @ -")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
