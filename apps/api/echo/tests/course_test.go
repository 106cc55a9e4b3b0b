package tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/testutil"
)

type courseResponse struct {
	Message  string        `json:"message"`
	CourseID string        `json:"courseId"`
	Course   course.Course `json:"course"`
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "Root", "admin@elimu.test", "", user.RoleAdmin)

	now := time.Now()
	algebra := testutil.CreateCourse(t, env.courses, "Algebra", "math", admin.ID, now.Add(-3*time.Hour))
	physics := testutil.CreateCourse(t, env.courses, "Physics", "science", admin.ID, now.Add(-2*time.Hour))
	geometry := testutil.CreateCourse(t, env.courses, "Geometry", "math", "", now.Add(-1*time.Hour))

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/api/courses?" + v.Encode()
	}

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{name: "newest first", path: "/api/courses", wantIDs: []string{geometry.ID, physics.ID, algebra.ID}},
		{name: "category", path: path("category", "math"), wantIDs: []string{geometry.ID, algebra.ID}},
		{name: "category (unknown)", path: path("category", "lol"), wantIDs: []string{}},
		{name: "ordering=title", path: path("ordering", "title"), wantIDs: []string{algebra.ID, geometry.ID, physics.ID}},
		{name: "sort=title&order=desc", path: path("sort", "title", "order", "desc"), wantIDs: []string{physics.ID, geometry.ID, algebra.ID}},
		{name: "unknown column falls back to default", path: path("sort", "title; DROP TABLE courses", "order", "asc"), wantIDs: []string{geometry.ID, physics.ID, algebra.ID}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := env.serve(newRequest(http.MethodGet, tt.path))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var res struct{ Courses []course.Course }
			decode(t, rec, &res)
			ids := make([]string, 0, len(res.Courses))
			for _, crs := range res.Courses {
				ids = append(ids, crs.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("creator names", func(t *testing.T) {
		rec := env.serve(newRequest(http.MethodGet, "/api/courses/"+algebra.ID))
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct{ Course course.Course }
		decode(t, rec, &res)
		assert.Equal(t, "Admin", res.Course.CreatorLastName.String)
		assert.Equal(t, "Root", res.Course.CreatorFirstName.String)
	})

	t.Run("not found", func(t *testing.T) {
		httpTest{
			path: "/api/courses/lol", wantCode: http.StatusNotFound, wantData: []byte(`{"error": "course not found"}`),
		}.run(t, env)
	})
}

func Test_courseApi_roles(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "Root", "admin@elimu.test", "", user.RoleAdmin)
	student := env.createUser(t, "Student", "Sam", "sam@elimu.test", "", user.RoleStudent)
	crs := testutil.CreateCourse(t, env.courses, "Algebra", "math", admin.ID)
	studentToken := env.token(t, student)
	forbidden := marchallObj(t, errForbidden)
	body := map[string]string{"title": "Intro", "description": "desc"}

	tests := []httpTest{
		{name: "create: auth required", method: http.MethodPost, path: "/api/courses", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "create: admin required", method: http.MethodPost, path: "/api/courses", body: body, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "update: admin required", method: http.MethodPut, path: "/api/courses/" + crs.ID, body: body, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "delete: admin required", method: http.MethodDelete, path: "/api/courses/" + crs.ID, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env)
		})
	}

	_, err := env.courses.GetCourse(env.ctx(), crs.ID)
	assert.NoError(t, err)
}

func Test_courseApi_fileLifecycle(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "Root", "admin@elimu.test", "", user.RoleAdmin)
	token := env.token(t, admin)
	pdf := formFile{field: "course_file", filename: "Chapter1.PDF", contentType: "application/pdf", content: pdfContent}

	var created course.Course
	t.Run("create without file", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/courses", token, map[string]string{"title": "Intro", "description": "desc"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res courseResponse
		decode(t, rec, &res)
		assert.Equal(t, "Cours créé avec succès !", res.Message)
		assert.Equal(t, res.CourseID, res.Course.ID)
		created = res.Course

		stored, err := env.courses.GetCourse(env.ctx(), res.CourseID)
		require.NoError(t, err)
		assert.Equal(t, "Intro", stored.Title)
		assert.False(t, stored.FileURL.Valid)
		assert.False(t, stored.FileType.Valid)
		assert.Equal(t, admin.ID, stored.CreatedBy.String)
	})

	var firstURL string
	t.Run("update attaching a PDF", func(t *testing.T) {
		require.NotEmpty(t, created.ID)
		rec := env.serve(newMultipartRequest(t, http.MethodPut, "/api/courses/"+created.ID, token,
			map[string]string{"level": "beginner"}, pdf))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res courseResponse
		decode(t, rec, &res)
		assert.Equal(t, "Cours mis à jour avec succès !", res.Message)

		stored, err := env.courses.GetCourse(env.ctx(), created.ID)
		require.NoError(t, err)
		require.True(t, stored.FileURL.Valid)
		assert.Regexp(t, `\.pdf$`, stored.FileURL.String)
		assert.Equal(t, course.FileTypePDF, stored.FileType.String)
		assert.Equal(t, "Intro", stored.Title) // absent fields are kept
		assert.Equal(t, "beginner", stored.Level.String)
		assert.FileExists(t, env.filePath(stored.FileURL.String))
		firstURL = stored.FileURL.String
	})

	t.Run("update replacing the file with a video", func(t *testing.T) {
		require.NotEmpty(t, firstURL)
		video := formFile{field: "course_file", filename: "lesson.mp4", contentType: "video/mp4", content: []byte("\x00\x00\x00\x18ftypmp42")}
		rec := env.serve(newMultipartRequest(t, http.MethodPut, "/api/courses/"+created.ID, token, nil, video))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		stored, err := env.courses.GetCourse(env.ctx(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, course.FileTypeVideo, stored.FileType.String)
		assert.Regexp(t, `\.mp4$`, stored.FileURL.String)
		assert.FileExists(t, env.filePath(stored.FileURL.String))
		assert.NoFileExists(t, env.filePath(firstURL))
		assert.Len(t, env.storedFiles(t), 1)
	})

	t.Run("update without file keeps it", func(t *testing.T) {
		before, err := env.courses.GetCourse(env.ctx(), created.ID)
		require.NoError(t, err)

		rec := env.serve(newAuthRequest(http.MethodPut, "/api/courses/"+created.ID, token, map[string]string{"category": "math"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		after, err := env.courses.GetCourse(env.ctx(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, before.FileURL, after.FileURL)
		assert.Equal(t, before.FileType, after.FileType)
		assert.Equal(t, "math", after.Category.String)
	})

	t.Run("delete removes the file", func(t *testing.T) {
		httpTest{
			method: http.MethodDelete, path: "/api/courses/" + created.ID, token: token,
			wantData: []byte(`{"message": "Cours supprimé avec succès !"}`),
		}.run(t, env)
		assert.Empty(t, env.storedFiles(t))

		_, err := env.courses.GetCourse(env.ctx(), created.ID)
		assert.Equal(t, course.ErrNotFound, err)

		httpTest{
			method: http.MethodDelete, path: "/api/courses/" + created.ID, token: token,
			wantCode: http.StatusNotFound, wantData: []byte(`{"error": "course not found"}`),
		}.run(t, env)
	})
}

func Test_courseApi_failures(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "Root", "admin@elimu.test", "", user.RoleAdmin)
	token := env.token(t, admin)
	pdf := formFile{field: "course_file", filename: "notes.pdf", contentType: "application/pdf", content: pdfContent}

	countCourses := func(t *testing.T) int {
		t.Helper()
		courses, err := env.courses.QueryCourses(env.ctx(), nil, nil)
		require.NoError(t, err)
		return len(courses)
	}

	t.Run("create: validation error leaves nothing behind", func(t *testing.T) {
		rec := env.serve(newMultipartRequest(t, http.MethodPost, "/api/courses", token, map[string]string{"title": "Intro"}, pdf))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"description": "this field is required"}`, rec.Body.String())
		assert.Zero(t, countCourses(t))
		assert.Empty(t, env.storedFiles(t))
	})

	t.Run("create: unsupported file type", func(t *testing.T) {
		img := formFile{field: "course_file", filename: "cover.png", contentType: "image/png", content: pngContent}
		rec := env.serve(newMultipartRequest(t, http.MethodPost, "/api/courses", token,
			map[string]string{"title": "Intro", "description": "desc"}, img))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"course_file": "unsupported file type \"image/png\""}`, rec.Body.String())
		assert.Zero(t, countCourses(t))
		assert.Empty(t, env.storedFiles(t))
	})

	t.Run("create: sniffed content type", func(t *testing.T) {
		sneaky := formFile{field: "course_file", filename: "notes.pdf", contentType: "application/octet-stream", content: txtContent}
		rec := env.serve(newMultipartRequest(t, http.MethodPost, "/api/courses", token,
			map[string]string{"title": "Intro", "description": "desc"}, sneaky))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"course_file": "unsupported file type \"text/plain\""}`, rec.Body.String())
		assert.Empty(t, env.storedFiles(t))
	})

	t.Run("create: failed commit", func(t *testing.T) {
		env.db.FailNextCommit()
		rec := env.serve(newMultipartRequest(t, http.MethodPost, "/api/courses", token,
			map[string]string{"title": "Intro", "description": "desc"}, pdf))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error": "Internal Server Error"}`, rec.Body.String())
		assert.Zero(t, countCourses(t))
		assert.Empty(t, env.storedFiles(t))
	})

	t.Run("update: unknown course", func(t *testing.T) {
		rec := env.serve(newMultipartRequest(t, http.MethodPut, "/api/courses/lol", token, map[string]string{"title": "x"}, pdf))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "course not found"}`, rec.Body.String())
		assert.Empty(t, env.storedFiles(t))
	})

	t.Run("update: failed commit keeps the old file", func(t *testing.T) {
		rec := env.serve(newMultipartRequest(t, http.MethodPost, "/api/courses", token,
			map[string]string{"title": "Intro", "description": "desc"}, pdf))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res courseResponse
		decode(t, rec, &res)
		oldURL := res.Course.FileURL.String

		env.db.FailNextCommit()
		rec = env.serve(newMultipartRequest(t, http.MethodPut, "/api/courses/"+res.CourseID, token,
			map[string]string{"title": "Changed"}, pdf))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		stored, err := env.courses.GetCourse(env.ctx(), res.CourseID)
		require.NoError(t, err)
		assert.Equal(t, "Intro", stored.Title)
		assert.Equal(t, oldURL, stored.FileURL.String)
		assert.FileExists(t, env.filePath(oldURL))
		assert.Len(t, env.storedFiles(t), 1)
	})

	t.Run("update: title too long", func(t *testing.T) {
		crs := testutil.CreateCourse(t, env.courses, "Algebra", "", admin.ID)
		rec := env.serve(newAuthRequest(http.MethodPut, "/api/courses/"+crs.ID, token, map[string]string{"title": strings.Repeat("a", 256)}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}
