package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forumgate/forumgate/internal/service"
)

// cliActor labels audit entries written from the command line.
const cliActor = "cli"

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and delete the API keys that unlock the gated registration and login endpoints.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyDeleteCmd())

	return cmd
}

// cliKeyService opens the store and wraps it in a KeyService with a quiet
// logger. The caller owns the returned closer.
func cliKeyService() (*service.KeyService, io.Closer, error) {
	store, err := openConfigStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open gateway store: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewKeyService(store, logger), store, nil
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		name       string
		allowedIPs string
		register   bool
		login      bool
		manage     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Issue a new API key. The key value is generated server-side and shown once.",
		Example: `  forumgate key create --name "main site" --register --login
  forumgate key create --name "partner" --register --allowed-ips "203.0.113.0/24"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(name, allowedIPs, register, login, manage)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable label for the key (required)")
	cmd.Flags().StringVar(&allowedIPs, "allowed-ips", "", "Comma-separated IPs and CIDR ranges the key may be used from")
	cmd.Flags().BoolVar(&register, "register", false, "Allow the key to call the registration endpoint")
	cmd.Flags().BoolVar(&login, "login", false, "Allow the key to call the login endpoint")
	cmd.Flags().BoolVar(&manage, "manage", false, "Allow the key to manage other keys")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(name, allowedIPs string, register, login, manage bool) error {
	keys, closer, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closer.Close()

	key, err := keys.Create(context.Background(), service.CreateKeyRequest{
		Name:         name,
		AllowedIPs:   allowedIPs,
		PermRegister: register,
		PermLogin:    login,
		PermManage:   manage,
	}, cliActor, "")
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  ID:    %d\n", key.ID)
	fmt.Printf("  Name:  %s\n", key.Name)
	fmt.Printf("  Key:   %s\n", key.Value)
	fmt.Printf("  Perms: %s\n", permsString(key.PermRegister, key.PermLogin, key.PermManage))
	if key.AllowedIPs != "" {
		fmt.Printf("  IPs:   %s\n", key.AllowedIPs)
	}
	fmt.Println()
	fmt.Println("  Consumers send the key as: Authorization: Bearer <key>")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	keys, closer, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closer.Close()

	list, err := keys.List(context.Background())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No API keys issued. Use 'forumgate key create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-24s %-20s %-24s %s\n", "ID", "NAME", "PERMS", "ALLOWED IPS", "KEY")
	fmt.Printf("%-6s %-24s %-20s %-24s %s\n", "--", "----", "-----", "-----------", "---")
	for _, k := range list {
		ips := k.AllowedIPs
		if ips == "" {
			ips = "(any)"
		}
		fmt.Printf("%-6d %-24s %-20s %-24s %s...\n",
			k.ID, k.Name, permsString(k.PermRegister, k.PermLogin, k.PermManage), ips, k.Value[:16])
	}

	return nil
}

func permsString(register, login, manage bool) string {
	var perms []string
	if register {
		perms = append(perms, "register")
	}
	if login {
		perms = append(perms, "login")
	}
	if manage {
		perms = append(perms, "manage")
	}
	if len(perms) == 0 {
		return "(none)"
	}
	return strings.Join(perms, ",")
}

// ---------- key delete ----------

func newKeyDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an API key by id",
		Long:    "Delete an API key. Consumers holding the key lose access immediately.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			return runKeyDelete(id, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation check")

	return cmd
}

func runKeyDelete(id int64, yes bool) error {
	keys, closer, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()

	if !yes {
		key, err := keys.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("key %d not found", id)
		}
		fmt.Printf("This deletes key %d (%q). Consumers using it lose access immediately.\n", key.ID, key.Name)
		fmt.Println("Re-run with --yes to confirm.")
		return nil
	}

	removed, err := keys.Delete(ctx, id, cliActor, "")
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if !removed {
		return fmt.Errorf("key %d not found", id)
	}

	fmt.Printf("Deleted key %d\n", id)
	return nil
}
