package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/auth-service/internal/password"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/token"
)

func newCreateSuperuserCmd(e *env) *cobra.Command {
	var in service.RegisterInput
	var firstName, lastName string

	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Register an active superuser account with the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Email == "" || in.Password == "" {
				return errors.New("--email and --password are required")
			}
			if firstName != "" {
				in.FirstName = &firstName
			}
			if lastName != "" {
				in.LastName = &lastName
			}
			in.IsSuperuser = true

			db, err := e.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			codec, err := token.NewCodec(e.cfg.JWTSecret, e.cfg.JWTAlgorithm)
			if err != nil {
				return err
			}
			var events service.EventPublisher = service.NopPublisher{}
			if e.cfg.RabbitMQURL != "" {
				pub := queue.NewPublisher(e.cfg.RabbitMQURL, e.log)
				defer pub.Close()
				events = pub
			}

			auth := service.NewAuthService(service.AuthDeps{
				Users:  repository.NewUserRepo(db),
				Roles:  repository.NewRoleRepo(db),
				Events: events,
				Hasher: password.NewHasher(e.cfg.BcryptCost),
				Codec:  codec,
			}, service.AuthConfig{
				Policy: password.Policy{MinLength: e.cfg.PasswordMinLength},
			}, e.log)

			u, err := auth.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superuser %s (id %d)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "optional first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "optional last name")
	return cmd
}
