package main

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/skdltmxn/clear2mangled/c2m"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage export cache files",
}

var cacheBuildCmd = &cobra.Command{
	Use:   "build <pe-file>",
	Short: "Demangle the exports of a PE image and write its cache file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheBuild,
}

var cachePathCmd = &cobra.Command{
	Use:   "path <pe-file>",
	Short: "Print the cache file used for a PE image",
	Args:  cobra.ExactArgs(1),
	RunE:  runCachePath,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <pe-file>",
	Short: "Remove the cache file of a PE image",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheBuildCmd)
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheBuild(cmd *cobra.Command, args []string) error {
	p := newProgress()
	l, err := newLoader(c2m.WithProgress(p.update))
	if err != nil {
		return err
	}

	p.start()
	ix, err := l.Rebuild(cmd.Context(), args[0])
	p.stop()
	if err != nil {
		return fmt.Errorf("failed to build cache: %w", err)
	}

	level.Info(logger).Log("msg", "cache built", "target", args[0], "records", ix.Len())
	if !noCache {
		fmt.Fprintln(output, l.CachePath(args[0]))
	}
	return nil
}

func runCachePath(cmd *cobra.Command, args []string) error {
	l, err := newLoader()
	if err != nil {
		return err
	}
	fmt.Fprintln(output, l.CachePath(args[0]))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	l, err := newLoader()
	if err != nil {
		return err
	}
	if err := l.ClearCache(args[0]); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	level.Info(logger).Log("msg", "cache removed", "path", l.CachePath(args[0]))
	return nil
}
