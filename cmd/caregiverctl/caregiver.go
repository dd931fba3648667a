package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/postgres"
	authsvc "github.com/jwalitptl/caregiver-api/internal/service/auth"
	"github.com/jwalitptl/caregiver-api/pkg/auth"
	"github.com/jwalitptl/caregiver-api/pkg/security"
)

var (
	caregiverEmail    string
	caregiverName     string
	caregiverPassword string
)

var caregiverCmd = &cobra.Command{
	Use:   "caregiver",
	Short: "Manage caregiver accounts",
}

var createCaregiverCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a caregiver account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if caregiverEmail == "" || caregiverPassword == "" {
			return errors.New("--email and --password are required")
		}
		return withDB(cmd.Context(), func(ctx context.Context, db *sqlx.DB) error {
			repos := postgres.NewRepositories(db)
			// tokens are discarded, so the signing secret does not matter here
			svc := authsvc.NewService(
				repos.Caregivers,
				auth.NewJWTService("caregiverctl", "caregiverctl", 0, 0),
				security.NewBcryptHasher(bcrypt.DefaultCost),
			)
			resp, err := svc.Register(ctx, &model.RegisterRequest{
				Email:    caregiverEmail,
				Name:     caregiverName,
				Password: caregiverPassword,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created caregiver %s (%s)\n", resp.Caregiver.ID, resp.Caregiver.Email)
			return nil
		})
	},
}

func initCaregiverCmd() {
	createCaregiverCmd.Flags().StringVar(&caregiverEmail, "email", "", "login email")
	createCaregiverCmd.Flags().StringVar(&caregiverName, "name", "", "display name")
	createCaregiverCmd.Flags().StringVar(&caregiverPassword, "password", "", "initial password")
	caregiverCmd.AddCommand(createCaregiverCmd)
}
