package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"course-registration/backend/pkg/jwt"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发开发用 Access Token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := uuid.Validate(tokenUser); err != nil {
			return fmt.Errorf("--user 必须是 UUID: %w", err)
		}
		if tokenRole != jwt.RoleStudent && tokenRole != jwt.RoleAdmin {
			return fmt.Errorf("--role 只能是 %s 或 %s", jwt.RoleStudent, jwt.RoleAdmin)
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		token, err := jwt.NewManager(&a.cfg.Auth).GenerateAccessToken(tokenUser, tokenRole)
		if err != nil {
			return fmt.Errorf("签发 token 失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "用户 ID（学生即学生 ID）")
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleStudent, "角色: student | admin")
	_ = tokenCmd.MarkFlagRequired("user")
}
