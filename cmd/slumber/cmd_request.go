package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slumber/internal/collection"
	"slumber/internal/config"
	"slumber/internal/engine"
	"slumber/internal/httpexec"
	"slumber/internal/model"
	"slumber/internal/override"
	"slumber/internal/prompter"
	"slumber/internal/store"
	"slumber/internal/template"
)

var (
	flagProfile     string
	flagOverrides   []string
	flagShowStatus  bool
	flagShowHeaders bool
	flagNoBody      bool
	flagExitStatus  bool
	flagDryRun      bool
)

var requestCmd = &cobra.Command{
	Use:               "request <recipe_id>",
	Short:             "Render and send one recipe from the collection",
	Args:              cobra.ExactArgs(1),
	RunE:              runRequest,
	ValidArgsFunction: completeRecipeIDs,
}

// completeRecipeIDs offers every recipe id in the --file collection as a
// completion candidate, mirroring cmd_root.go's dynamicCompletion (which
// walks the teacher's node tree the same way RecipeTree.Walk does here).
func completeRecipeIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || flagCollectionFile == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	data, err := os.ReadFile(flagCollectionFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	coll, err := collection.Load(flagCollectionFile, data)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	coll.Tree.Walk(func(_ collection.LookupKey, n collection.Node) bool {
		if r, ok := n.(*collection.RecipeNode); ok && strings.HasPrefix(string(r.ID), toComplete) {
			ids = append(ids, string(r.ID))
		}
		return true
	})
	return ids, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	requestCmd.Flags().StringVar(&flagProfile, "profile", "", "profile id to render against")
	requestCmd.Flags().StringArrayVar(&flagOverrides, "override", nil, "recipe field override, key=value with key url, body, query[n], headers[n], form[n], auth.user|pass|token or profile.<field> (repeatable)")
	requestCmd.Flags().BoolVar(&flagShowStatus, "status", false, "print the response status line")
	requestCmd.Flags().BoolVar(&flagShowHeaders, "headers", false, "print the response headers")
	requestCmd.Flags().BoolVar(&flagNoBody, "no-body", false, "suppress the response body")
	requestCmd.Flags().BoolVar(&flagExitStatus, "exit-status", false, "exit 2 if the response status is >= 400")
	requestCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the would-be request instead of sending it")
}

func runRequest(cmd *cobra.Command, args []string) error {
	if flagCollectionFile == "" {
		return fmt.Errorf("--file is required")
	}
	recipeID := model.RecipeId(args[0])
	ctx := context.Background()

	absPath, err := filepath.Abs(flagCollectionFile)
	if err != nil {
		return fmt.Errorf("resolving collection path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading collection file: %w", err)
	}
	coll, err := collection.Load(absPath, data)
	if err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}

	cfg, err := config.Load(flagConfigPath, version)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	overrides := override.New()
	if err := applyOverrides(overrides, recipeID, flagOverrides); err != nil {
		return err
	}

	var profileID *model.ProfileId
	if flagProfile != "" {
		id := model.ProfileId(flagProfile)
		profileID = &id
	} else if coll.DefaultProfile != nil {
		profileID = coll.DefaultProfile
	}

	executor := httpexec.New(httpexec.Options{
		Product:       cfg.Product,
		Version:       cfg.Version,
		TLSSkipHosts:  cfg.TLSSkipHosts,
		LargeBodySize: cfg.LargeBodySize,
	})

	var st *store.Store
	if !flagDryRun {
		st, err = openCollectionStore(ctx, cfg, absPath)
		if err != nil {
			return fmt.Errorf("opening exchange store: %w", err)
		}
		defer st.Close()
	}

	eng := engine.New(coll, overrides, executor, st, prompter.New())
	eng.DryRun = flagDryRun

	if flagDryRun {
		req, err := eng.Build(ctx, profileID, recipeID)
		if err != nil {
			return err
		}
		printRequest(cmd, req)
		return nil
	}

	ex, err := eng.Send(ctx, profileID, recipeID)
	if err != nil {
		return err
	}
	printResponse(cmd, ex)

	if flagExitStatus && ex.Response.Status >= 400 {
		exitCode = 2
	}
	return nil
}

// applyOverrides parses each "--override key=value" argument via
// override.ParseArg (spec.md §4.8), recognizing url/body/query[n]/
// headers[n]/form[n]/auth.user|pass|token/profile.<field> key forms, and
// records the parsed template against recipe.
func applyOverrides(overrides *override.Store, recipe model.RecipeId, args []string) error {
	for _, arg := range args {
		key, val, err := override.ParseArg(arg)
		if err != nil {
			return err
		}
		tmpl, err := template.Parse(val)
		if err != nil {
			return fmt.Errorf("parsing override %q: %w", arg, err)
		}
		overrides.Set(recipe, key, override.Value{Template: tmpl})
	}
	return nil
}

// openCollectionStore opens the SQLite exchange store for the collection at
// absPath. The on-disk filename is a deterministic hash of the canonicalised
// collection path rather than the internal collections.id row (a random
// uuid minted lazily on first open, per internal/store's schema) — this
// keeps "one database file per collection path" possible without a
// chicken-and-egg lookup to learn the id before the file exists.
func openCollectionStore(ctx context.Context, cfg *config.Config, absPath string) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	sum := sha256.Sum256([]byte(absPath))
	dbPath := filepath.Join(cfg.DataDir, hex.EncodeToString(sum[:16])+".sqlite")
	return store.Open(ctx, dbPath, []byte(absPath), nil)
}
