package tests

import (
	"os"
	"testing"

	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
	logsvc "github.com/trezcool/elimu/services/logger"
)

func TestMain(m *testing.M) {
	user.LoadCommonPasswords(appfs.FS, logsvc.NewNop())
	os.Exit(m.Run())
}
