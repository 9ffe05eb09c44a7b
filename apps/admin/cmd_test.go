package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core/user"
	inmemdb "github.com/trezcool/remindme/storage/database/inmem"
	testutil "github.com/trezcool/remindme/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	logger = log.New(io.Discard, "", 0)

	// set up DB & repos
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	validate, _ := testutil.NewValidator()

	// start CLI
	return &commandLine{
		usrSvc:   user.NewService(usrRepo),
		validate: validate,
	}
}

// mockPasswords makes readPasswordFunc return pwds in turn, then empty passwords.
func mockPasswords(pwds ...string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	var gotArgs []string
	runMigrationFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_rooms", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "3"}))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"3"}, gotArgs)
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, user.User{Name: "Taken", Username: "taken", Email: "taken@test.cd"}, "")

	tests := []cliTest{
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "no username nor email", args: []string{"createadmin", "-name", "Ada"}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-name", "Ada", "-username", "ada"}, wantErr: errHelp},
		{
			name:       "passwords mismatch",
			args:       []string{"createadmin", "-name", "Ada", "-username", "ada"},
			pwds:       []string{"Sup3rS3cret", "Sup3rS3cre"},
			wantErrStr: "PasswordConfirm",
		},
		{
			name:       "password too short",
			args:       []string{"createadmin", "-name", "Ada", "-username", "ada"},
			pwds:       []string{"Shrt1!", "Shrt1!"},
			wantErrStr: "pwdminlen",
		},
		{
			name:       "username taken",
			args:       []string{"createadmin", "-name", "Ada", "-username", "taken"},
			pwds:       []string{"Sup3rS3cret", "Sup3rS3cret"},
			wantErrStr: user.ErrUsernameExists.Error(),
		},
		{
			name: "ok",
			args: []string{"createadmin", "-name", "Ada Lovelace", "-username", "Ada", "-email", "ada@test.cd"},
			pwds: []string{"Sup3rS3cret", "Sup3rS3cret"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(tt.pwds...)
			tt.check(t, cli.run(args))
		})
	}

	usr, err := cli.usrSvc.GetByLogin(context.Background(), "ada@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "ada", usr.Username)
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Sup3rS3cret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, user.User{
		Name:     "User",
		Username: "awe",
		Email:    "awe@test.cd",
		Roles:    []string{user.RoleLecturer},
	}, "mdr12345")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwds: []string{"lol"}, wantErr: user.ErrNotFound},
		{name: "password too short", args: []string{"resetpassword", "-username", usr.Username}, pwds: []string{"k7!pz"}, wantErrStr: "pwdminlen"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwds: []string{"Wq8#vLm2x"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwds: []string{"Zr4$kPn9y"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(tt.pwds...)
			err := cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}

			refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(tt.pwds[0]))
			usr = refreshedUsr
		})
	}
}
