package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hr-approval/internal/config"
	"github.com/garyjia/hr-approval/internal/container"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`database:
  path: %s
logger:
  output_path: %s
auth:
  jwt_secret: cli-test-secret-0123456789
export:
  dir: %s
`, filepath.Join(dir, "hrflow.db"), filepath.Join(dir, "hrflow.log"), filepath.Join(dir, "exports"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// resetFlags clears flag values left over from a previous Execute
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_MigrateUserAddToken(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "migrate", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	out, err = run(t, "user", "add", "-c", cfgPath,
		"--name", "Asha Rao", "--email", "asha@example.com",
		"--role", "tl", "--role", "Director")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user 1 Asha Rao <asha@example.com>")
	assert.Contains(t, out, "Team Lead")
	assert.Contains(t, out, "Director")

	out, err = run(t, "token", "-c", cfgPath, "--email", "asha@example.com")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	tokens, err := container.ProvideTokenManager(&cfg.Auth)
	require.NoError(t, err)
	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestCLI_UserAddRejectsUnknownRole(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "user", "add", "-c", cfgPath,
		"--name", "Ravi", "--email", "ravi@example.com", "--role", "janitor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "janitor"`)
}

func TestCLI_UserAddRejectsBadEmail(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "user", "add", "-c", cfgPath, "--name", "Ravi", "--email", "ravi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email format")
}

func TestCLI_TokenUnknownUser(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "token", "-c", cfgPath, "--user-id", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}

func TestCLI_Export(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "user", "add", "-c", cfgPath, "--name", "Hana", "--email", "hana@example.com", "--role", "hr")
	require.NoError(t, err)

	out, err := run(t, "export", "-c", cfgPath, "--type", "leave", "--as", "hana@example.com")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(filepath.Dir(cfgPath), "exports", "leave"), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "leave_finalized_"))
	assert.FileExists(t, path)

	_, err = run(t, "export", "-c", cfgPath, "--type", "payroll", "--as", "hana@example.com")
	assert.Error(t, err)

	_, err = run(t, "export", "-c", cfgPath, "--type", "leave", "--as", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
