package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/auth"
	"github.com/turtacn/authz/pkg/constants"
)

type clientCreateOptions struct {
	id               string
	name             string
	types            []string
	audience         string
	registeredScopes string
	requiredScopes   string
	callbacks        []string
	relations        []string
	ttlSeconds       int
}

func newClientCmd(opts *adminOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage registered clients",
	}
	cmd.AddCommand(newClientCreateCmd(opts))
	return cmd
}

func newClientCreateCmd(opts *adminOptions) *cobra.Command {
	co := &clientCreateOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its secret once",
		Example: `  authz-admin client create --name web --type UI --required-scopes "read:x" --callback https://web/cb
  authz-admin client create --name orders --type SERVICE --audience https://orders \
      --registered-scopes "read:x write:x" --allow "web=read:x"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := co.build()
			if err != nil {
				return err
			}
			if problems := client.Validate(); len(problems) > 0 {
				return fmt.Errorf("invalid client: %s", strings.Join(problems, "; "))
			}

			secret, err := auth.GenerateSecret()
			if err != nil {
				return err
			}
			if client.ClientSecretHash, err = auth.HashSecret(secret); err != nil {
				return err
			}

			ctx := contextOf(cmd)
			c, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			if err := requireDatabase(c); err != nil {
				return err
			}
			if err := c.ClientStore.Save(ctx, client); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client_id:     %s\n", client.ClientID)
			fmt.Fprintf(out, "client_secret: %s\n", secret)
			fmt.Fprintln(out, "the secret is not stored and cannot be shown again")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&co.id, "id", "", "client_id (default: random uuid)")
	f.StringVar(&co.name, "name", "", "unique client name")
	f.StringSliceVar(&co.types, "type", nil, "application type, UI or SERVICE (repeatable)")
	f.StringVar(&co.audience, "audience", "", "audience of a SERVICE client")
	f.StringVar(&co.registeredScopes, "registered-scopes", "", "space separated scopes a SERVICE exposes")
	f.StringVar(&co.requiredScopes, "required-scopes", "", "space separated scopes a UI client needs")
	f.StringSliceVar(&co.callbacks, "callback", nil, "allowed redirect uri (repeatable)")
	f.StringArrayVar(&co.relations, "allow", nil, `relation "source-name=scope1,scope2" (repeatable)`)
	f.IntVar(&co.ttlSeconds, "ttl", 0, "access token lifetime override in seconds")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (co *clientCreateOptions) build() (*models.OAuthClient, error) {
	client := &models.OAuthClient{
		ClientID:              co.id,
		Name:                  co.name,
		Audience:              co.audience,
		RegisteredScopes:      models.ParseScopes(co.registeredScopes),
		RequiredScopes:        models.ParseScopes(co.requiredScopes),
		AllowedCallbacks:      co.callbacks,
		AccessTokenTTLSeconds: co.ttlSeconds,
	}
	if client.ClientID == "" {
		client.ClientID = uuid.NewString()
	}

	for _, t := range co.types {
		at := constants.ApplicationType(strings.ToUpper(strings.TrimSpace(t)))
		if at != constants.ApplicationTypeUI && at != constants.ApplicationTypeService {
			return nil, fmt.Errorf("unknown application type %q", t)
		}
		client.ApplicationTypes = append(client.ApplicationTypes, at)
	}

	for _, raw := range co.relations {
		rel, err := parseRelation(raw)
		if err != nil {
			return nil, err
		}
		client.AllowedClients = append(client.AllowedClients, rel)
	}
	return client, nil
}

// parseRelation reads "source=scope1,scope2".
func parseRelation(raw string) (models.ClientAllowRelation, error) {
	name, scopes, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(scopes) == "" {
		return models.ClientAllowRelation{}, fmt.Errorf("relation %q must look like source=scope1,scope2", raw)
	}
	return models.ClientAllowRelation{
		SourceClientName: name,
		AllowedScopes:    models.NewScopes(strings.Split(scopes, ",")...),
	}, nil
}
