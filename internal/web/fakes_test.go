package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/sheet"
)

type fakeUploader struct {
	names    []string
	contents []string
	err      error
}

func (f *fakeUploader) Upload(ctx context.Context, files []core.UploadedFile) (*core.LoadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := &core.LoadResult{JobID: core.JobIDFromContext(ctx)}
	for _, file := range files {
		data, err := io.ReadAll(file.Reader)
		if err != nil {
			return nil, err
		}
		f.names = append(f.names, file.Name)
		f.contents = append(f.contents, string(data))
		rows := int64(bytes.Count(data, []byte("\n")))
		result.Files = append(result.Files, core.FileResult{Name: file.Name, Rows: rows})
		result.Total += rows
	}
	return result, nil
}

func (f *fakeUploader) SuccessMessage(result *core.LoadResult) string {
	return result.Message(config.DefaultConstants().UploadSuccess)
}

type fakeSheets struct {
	archive string
	err     error
}

func (f *fakeSheets) Convert(ctx context.Context, r io.Reader, w io.Writer) (*sheet.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.WriteString(w, f.archive); err != nil {
		return nil, err
	}
	return &sheet.Result{Sheets: []sheet.SheetResult{{Sheet: "Sheet1", Entry: "Sheet1.csv", Rows: 2}}}, nil
}

type fakeReporter struct {
	csv string
	err error
}

func (f *fakeReporter) Generate(ctx context.Context, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := io.WriteString(w, f.csv)
	return 1, err
}

type fakeConversion struct {
	result *pipeline.ConversionResult
	err    error
	block  chan struct{}
}

func (f *fakeConversion) Run(ctx context.Context) (*pipeline.ConversionResult, error) {
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeConversion) FailureMessage(err error) string {
	return "Error: " + err.Error() + "\n"
}

type fakeJar struct {
	result *pipeline.JarResult
	err    error
}

func (f *fakeJar) Run(ctx context.Context) (*pipeline.JarResult, error) {
	return f.result, f.err
}

type fakeSegments struct {
	truncated []string
	dates     []string
}

func (f *fakeSegments) Segments() []core.Segment {
	return core.NewSegmentRegistry(config.DefaultConstants()).All()
}

func (f *fakeSegments) MigrateSegment(ctx context.Context, key string) (*pipeline.SegmentCount, error) {
	if key != "borrower" {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownSegment, key)
	}
	return &pipeline.SegmentCount{Segment: "borrower", Table: "borrower_seg", Count: 12}, nil
}

func (f *fakeSegments) TruncateSegment(ctx context.Context, key string) error {
	f.truncated = append(f.truncated, key)
	return nil
}

func (f *fakeSegments) DuplicateTables(ctx context.Context, date string) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("%w: %q", pipeline.ErrInvalidDate, date)
	}
	f.dates = append(f.dates, date)
	return nil
}

func (f *fakeSegments) DropBackup(ctx context.Context) error { return nil }

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
	}
}

func testServices() Services {
	return Services{
		Upload:     &fakeUploader{},
		Sheets:     &fakeSheets{archive: "PK-archive"},
		Report:     &fakeReporter{csv: "Id,unique_commercial_id\n1,UC-1\n"},
		Conversion: &fakeConversion{result: &pipeline.ConversionResult{Message: "Borrower Segment: 12\n"}},
		Jar:        &fakeJar{result: &pipeline.JarResult{Message: "Success!", Succeeded: true}},
		Segments:   &fakeSegments{},
		DB:         fakePinger{},
	}
}

func newTestServer(t *testing.T, svc Services, limiter *core.JobLimiter) *Server {
	t.Helper()
	if limiter == nil {
		limiter = core.NewJobLimiter(2, time.Second)
	}
	return NewServer(testConfig(), config.DefaultConstants(), svc, limiter)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

// multipartRequest builds a POST with one part per name/content pair under field.
func multipartRequest(t *testing.T, target, field string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var errBoom = errors.New("boom")
