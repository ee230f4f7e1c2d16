// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/docchat-tui/internal/config"
)

// ErrConfigExists is returned by config init when the file is already there.
var ErrConfigExists = errors.New("config file already exists; pass --force to overwrite")

func newConfigCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
		// These commands must work with a broken config, so they skip the
		// root setup.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt.bindStreams(cmd)
			return nil
		},
	}
	cmd.AddCommand(
		newConfigPathCmd(rt),
		newConfigShowCmd(rt),
		newConfigInitCmd(rt),
		newConfigGetCmd(rt),
		newConfigSetCmd(rt),
	)
	return cmd
}

// targetPath is the file config init and set write to.
func (rt *runtime) targetPath() (string, error) {
	if rt.opts.configPath != "" {
		return rt.opts.configPath, nil
	}
	if path := config.Locate(); path != "" {
		return path, nil
	}
	return config.ConfigPathTOML()
}

func newConfigPathCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.targetPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(rt.out, path)
			return nil
		},
	}
}

func newConfigShowCmd(rt *runtime) *cobra.Command {
	var asJSON, asYAML bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and DOCCHAT_*
environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(rt.opts.envFiles...); err != nil {
				return err
			}
			cfg, _, err := loadConfig(rt.opts.configPath)
			if err != nil {
				return err
			}
			switch {
			case asJSON:
				return NewJSONResponse("config show", cfg).Write(rt.out)
			case asYAML:
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = rt.out.Write(data)
				return err
			default:
				return toml.NewEncoder(rt.out).Encode(cfg)
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}

func newConfigInitCmd(rt *runtime) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rt.opts.configPath
			if path == "" {
				var err error
				if path, err = config.ConfigPathTOML(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s: %w", path, ErrConfigExists)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one setting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.GetAllKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(rt.opts.configPath)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(rt.out, v)
			return nil
		},
	}
}

func newConfigSetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long: "Change one setting in the config file. Known keys:\n  " +
			strings.Join(config.GetAllKeys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.targetPath()
			if err != nil {
				return err
			}
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if cfg, err = config.LoadFile(path); err != nil {
					return err
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", args[0], err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "%s = %v\n", args[0], args[1])
			return nil
		},
	}
}
