package user

import (
	"bytes"
	"compress/gzip"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	logsvc "github.com/trezcool/elimu/services/logger"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := gzip.NewWriter(buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func loadTestCommonPasswords(t *testing.T) {
	t.Helper()
	LoadCommonPasswords(fstest.MapFS{
		commonPasswordsPath: &fstest.MapFile{Data: gzipped(t, "password\nAzerty123\n\nsoleil\n")},
	}, logsvc.NewNop())
}

func Test_checkPassword(t *testing.T) {
	loadTestCommonPasswords(t)

	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "ab1", want: pwdMinLenTag},
		{name: "short multibyte", pwd: "ééééé", want: pwdMinLenTag},
		{name: "whitespace", pwd: "my secret", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", want: pwdNotAllNumTag},
		{name: "similar to attribute", pwd: "Martinez", attrs: []string{"", "martinez"}, want: pwdAttrSimTag},
		{name: "common", pwd: "AZERTY123", want: pwdNoCommonTag},
		{name: "valid", pwd: "s3cr3t-Tr4in", attrs: []string{"alice@example.com", "Alice", "Martin"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, tt.attrs...))
		})
	}
}

func TestLoadCommonPasswords(t *testing.T) {
	t.Run("missing file keeps the list", func(t *testing.T) {
		loadTestCommonPasswords(t)
		LoadCommonPasswords(fstest.MapFS{}, logsvc.NewNop())
		assert.True(t, isCommonPassword("soleil"))
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		loadTestCommonPasswords(t)
		assert.True(t, isCommonPassword("PassWord"))
		assert.False(t, isCommonPassword("passwords"))
		assert.False(t, isCommonPassword(""))
	})
}

func TestInitValidators(t *testing.T) {
	loadTestCommonPasswords(t)
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	fieldErrors := func(err error) map[string]string {
		got := make(map[string]string)
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
		}
		return got
	}

	t.Run("new user", func(t *testing.T) {
		nu := NewUser{LastName: "Martin", FirstName: "Alice", Email: "alice@example.com", Password: "123456"}
		err := validate.Struct(nu)
		require.Error(t, err)
		assert.Equal(t, "password cannot be entirely numeric", fieldErrors(err)["password"])
	})

	t.Run("change password", func(t *testing.T) {
		cp := ChangePassword{CurrentPassword: "whatever", NewPassword: "soleil"}
		err := validate.Struct(cp)
		require.Error(t, err)
		assert.Equal(t, "password is too common", fieldErrors(err)["newPassword"])
	})

	t.Run("reset password", func(t *testing.T) {
		rp := ResetUserPassword{Token: " 123456 ", NewPassword: "s3cr3t-Tr4in"}
		require.NoError(t, rp.Validate(validate))
		assert.Equal(t, "123456", rp.Token)

		rp.NewPassword = "abc"
		err := rp.Validate(validate)
		require.Error(t, err)
		assert.Equal(t, "password must contain at least 6 characters", fieldErrors(err)["newPassword"])
	})
}

func Test_newResetCode(t *testing.T) {
	re := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 50; i++ {
		code, err := newResetCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}
