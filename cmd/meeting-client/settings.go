package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/settings"
)

var errSettingsUsage = errors.New("usage: settings list | get <key> | set <key> <value>")

func settingsCommand(cfg *config.Config, args []string, out io.Writer) (err error) {
	if len(args) == 0 {
		return errSettingsUsage
	}

	store, err := settings.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer func() {
		if cerr := store.Close(); err == nil {
			err = cerr
		}
	}()

	switch args[0] {
	case "list":
		if len(args) != 1 {
			return errSettingsUsage
		}
		snap, err := store.Snapshot()
		if err != nil {
			return err
		}
		for _, name := range settings.Names() {
			if err := printSetting(out, name, snap[name]); err != nil {
				return err
			}
		}
		return nil

	case "get":
		if len(args) != 2 {
			return errSettingsUsage
		}
		v, err := store.Value(args[1])
		if err != nil {
			return err
		}
		return printSetting(out, args[1], v)

	case "set":
		if len(args) != 3 {
			return errSettingsUsage
		}
		if err := store.SetRaw(args[1], args[2]); err != nil {
			return err
		}
		v, err := store.Value(args[1])
		if err != nil {
			return err
		}
		return printSetting(out, args[1], v)

	default:
		return errSettingsUsage
	}
}

func printSetting(out io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s=%s\n", name, data)
	return err
}
