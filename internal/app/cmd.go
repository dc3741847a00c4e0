package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTPサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はクリーンアップワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はサブコマンドを登録したルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "summit",
		Short:         "Startup directory with an admin review console",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandServe, runServe)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandServe, runServe)
			},
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "Run the periodic cleanup worker",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandWorker, runWorker)
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "Apply all pending database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandMigrate, runMigrate)
			},
		},
		newHealthcheckCommand(),
		newUserCommand(w),
		newAdminCommand(w),
	)

	return root
}

// healthcheck は軽量サブコマンドのため、設定の読み込みをスキップする
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check that the local server answers /health",
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(port)
		},
	}
}

func newUserCommand(w io.Writer) *cobra.Command {
	var email, password string

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user with an email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runUserCreate(cmd.Context(), cfg, email, password)
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address of the new user")
	create.Flags().StringVar(&password, "password", "", "initial password (at least 6 characters)")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("password")

	user := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	user.AddCommand(create)
	return user
}

func newAdminCommand(w io.Writer) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke access to the admin console",
	}

	for _, grant := range []bool{true, false} {
		var email string
		use, short := "grant", "Grant admin access to a user"
		if !grant {
			use, short = "revoke", "Revoke admin access from a user"
		}
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := Init(w)
				if err != nil {
					return fmt.Errorf("initialization failed: %w", err)
				}
				return runAdminChange(cmd.Context(), cfg, email, grant)
			},
		}
		c.Flags().StringVar(&email, "email", "", "email address of the user")
		c.MarkFlagRequired("email")
		admin.AddCommand(c)
	}
	return admin
}
