package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/transport"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Evaluate a scene script on the server",
	Long: `Evaluate a scene script on the server and print the transcript of the
registry calls it made. Use "-" to read the script from stdin.

Calls made before a failing line are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readScript(cmd, args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			res, evalErrs, err := c.RunScript(ctx, src)
			if err != nil {
				return err
			}
			out := scriptOutput{Generation: res.Generation, Calls: res.Calls, Errors: evalErrs}
			if err := printYAML(cmd, out); err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				return errors.New("script failed")
			}
			return nil
		})
	},
}

// scriptOutput is what `run` prints.
type scriptOutput struct {
	Generation uint64             `yaml:"generation"`
	Calls      []engine.Call      `yaml:"calls"`
	Errors     []engine.EvalError `yaml:"errors,omitempty"`
}

func readScript(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

var polyhedraCmd = &cobra.Command{
	Use:   "polyhedra",
	Short: "List every polyhedron",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			ps, err := c.ListPolyhedra(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd, ps)
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Describe one polyhedron",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			info, err := c.DescribePolyhedron(ctx, args[0])
			if err != nil {
				return err
			}
			return printYAML(cmd, info)
		})
	},
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List every collision list and its members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			ls, err := c.ListCollisionLists(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd, ls)
		})
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <list>",
	Short: "Make a collision list the active obstacle set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			if err := c.SetObstacles(ctx, args[0]); err != nil {
				return err
			}
			active, err := c.ActiveObstacles(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd, active)
		})
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active obstacle set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			active, err := c.ActiveObstacles(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd, active)
		})
	},
}

var meshesHidden bool

var meshesCmd = &cobra.Command{
	Use:   "meshes",
	Short: "Print world-space meshes of the active obstacle set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			meshes, err := c.ActiveMeshes(ctx, meshesHidden)
			if err != nil {
				return err
			}
			return printYAML(cmd, meshes)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the scene for mesh and placement problems",
	Long: `Check every polyhedron, collision list and the active set without
changing anything. Errors are meshes that will fail to compile; warnings
cover open meshes, unused polyhedra, empty lists and overlapping obstacles.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			rep, err := c.CheckScene(ctx)
			if err != nil {
				return err
			}
			if err := printYAML(cmd, rep); err != nil {
				return err
			}
			if !rep.OK() {
				return fmt.Errorf("scene check found %d errors", len(rep.Errors))
			}
			return nil
		})
	},
}

var healthService string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) error {
			st, err := c.Health(ctx, healthService)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.String())
			return nil
		})
	},
}

func init() {
	meshesCmd.Flags().BoolVar(&meshesHidden, "hidden", false, "include invisible polyhedra")
	healthCmd.Flags().StringVar(&healthService, "service", "", "service to check; empty checks the whole server")

	rootCmd.AddCommand(runCmd, polyhedraCmd, describeCmd, listsCmd, activateCmd, activeCmd, meshesCmd, checkCmd, healthCmd)
}
