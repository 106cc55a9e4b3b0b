package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
	"github.com/trezcool/elimu/core/attachment"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/report"
	"github.com/trezcool/elimu/core/settings"
	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
	emailsvc "github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/services/filestore"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/services/ratelimit"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	"github.com/trezcool/elimu/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type httpErr struct {
	Error string `json:"error"`
}

type testEnv struct {
	conf       *core.Config
	db         *inmemdb.DB
	app        Server
	mailSvc    *emailsvc.ConsoleServiceMock
	uploadsDir string

	users    user.Repository
	courses  course.Repository
	anns     announcement.Repository
	messages contact.Repository
}

func setup(t *testing.T, limiter ...ratelimit.Limiter) *testEnv {
	t.Helper()
	uploadsDir := t.TempDir()
	conf := testutil.NewConfig(uploadsDir)
	logger := logsvc.NewNop()
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		conf:       conf,
		db:         db,
		uploadsDir: uploadsDir,
		users:      inmemdb.NewUserRepository(db),
		courses:    inmemdb.NewCourseRepository(db),
		anns:       inmemdb.NewAnnouncementRepository(db),
		messages:   inmemdb.NewMessageRepository(db),
	}

	// set up services
	store, err := filestore.NewLocalStore(conf)
	require.NoError(t, err)
	files := attachment.NewManager(store, db, logger, conf.Uploads.MaxBytes)
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	env.mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)

	deps := &Deps{
		DB:              db,
		UserSvc:         user.NewService(env.users, env.mailSvc, files, conf),
		CourseSvc:       course.NewService(env.courses, files, validate),
		AnnouncementSvc: announcement.NewService(env.anns, env.courses, files, validate),
		SettingsSvc:     settings.NewService(inmemdb.NewSettingsRepository(db), db),
		ContactSvc:      contact.NewService(env.messages),
		ReportSvc:       report.NewService(inmemdb.NewReportRepository(db)),
		Validate:        validate,
		Translator:      translator,
		Logger:          logger,
		UploadsDir:      store.Dir(),
	}
	if len(limiter) > 0 {
		deps.ResetLimiter = limiter[0]
	}

	// set up server
	env.app = NewServer(conf, nil /* shutdown */, deps)
	return env
}

func (env *testEnv) createUser(t *testing.T, lastName, firstName, email, pwd, role string) user.User {
	return testutil.CreateUser(t, env.users, lastName, firstName, email, pwd, role)
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr, env.conf), env.conf.SecretKey)
	require.NoError(t, err)
	return token
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

// filePath returns where a locally stored file lives on disk.
func (env *testEnv) filePath(url string) string {
	return filepath.Join(env.uploadsDir, strings.TrimPrefix(url, env.conf.Uploads.URLPrefix+"/"))
}

// storedFiles lists the file names currently in the upload directory.
func (env *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(env.uploadsDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newAuthRequest(method, path, token string, data ...interface{}) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 && data[0] != nil {
		switch d := data[0].(type) {
		case []byte:
			body.Write(d)
		case string:
			body.WriteString(d)
		default:
			_ = json.NewEncoder(&body).Encode(d)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...interface{}) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

var (
	pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	pngContent = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	txtContent = []byte("just some plain text, not a course file")
)

func newMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
}

func (tt httpTest) run(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	rec := env.serve(newAuthRequest(method, tt.path, tt.token, tt.body))
	checkCodeAndData(t, tt, rec)
	return rec
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func (env *testEnv) ctx() context.Context {
	return context.Background()
}
