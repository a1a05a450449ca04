// Copyright (c) 2025 BVK Chaitanya

// Package envfile loads KEY=VALUE assignments from .env style files into the
// process environment.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

type options struct {
	// allowedKeys is nil when all keys are loaded.
	allowedKeys map[string]bool

	filePath string

	searchCurrentDirectory bool

	scanParentDirectories bool

	overwriteIfExists bool
}

// Var is a single variable assignment from an env file.
type Var struct {
	Key   string
	Value string
}

// UpdateEnv updates current process's environment with the values read from
// the env filename found in the user's home directory. The location of the env
// file search path and other behaviors can be changed by the input options.
// Missing files are not an error, except for the file named by the FilePath
// option.
//
// Returns the names of the variables that were set.
func UpdateEnv(filename string, opts ...Option) ([]string, error) {
	if strings.ContainsRune(filename, os.PathSeparator) {
		return nil, fmt.Errorf("file name contains path separator: %w", os.ErrInvalid)
	}
	var fopts options
	for _, v := range opts {
		if err := v.apply(&fopts); err != nil {
			return nil, err
		}
	}

	if len(fopts.filePath) != 0 {
		return loadFile(fopts.filePath, &fopts)
	}

	fpaths, err := searchPaths(filename, &fopts)
	if err != nil {
		return nil, err
	}
	for _, fpath := range fpaths {
		keys, err := loadFile(fpath, &fopts)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return keys, nil
	}
	return nil, nil
}

func searchPaths(filename string, fopts *options) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	var fpaths []string
	if fopts.searchCurrentDirectory {
		fpaths = []string{filepath.Join(cwd, filename)}
	}
	if fopts.scanParentDirectories {
		last, dir := "", filepath.Dir(cwd)
		for dir != last {
			fpaths = append(fpaths, filepath.Join(dir, filename))
			last, dir = dir, filepath.Dir(dir)
		}
	}
	if len(fpaths) == 0 {
		user, err := user.Current()
		if err != nil {
			return nil, err
		}
		if len(user.HomeDir) == 0 {
			return nil, fmt.Errorf("could not determine current user's home directory")
		}
		fpaths = []string{filepath.Join(user.HomeDir, filename)}
	}
	return fpaths, nil
}

func loadFile(fpath string, fopts *options) ([]string, error) {
	fp, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	vars, err := Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fpath, err)
	}

	var keys []string
	for _, v := range vars {
		key := v.Key
		if fopts.allowedKeys != nil && !fopts.allowedKeys[key] {
			continue
		}
		if len(os.Getenv(key)) != 0 && !fopts.overwriteIfExists {
			continue
		}
		if err := os.Setenv(key, v.Value); err != nil {
			return nil, fmt.Errorf("could not set environment variable %q: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Parse reads variable assignments in the input order. Blank lines and lines
// starting with # are skipped. An optional "export " prefix is removed. Values
// in double quotes are unquoted with Go string escapes; values in single quotes
// are taken literally; unquoted values end at the first " #".
func Parse(r io.Reader) ([]Var, error) {
	var vars []Var
	scanner := bufio.NewScanner(r)
	for i := 1; scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid/unrecognized variable assignment on line %d: %w", i, os.ErrInvalid)
		}
		key = strings.TrimSpace(key)
		if !keyRe.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable name %q on line %d: %w", key, i, os.ErrInvalid)
		}

		value, err := parseValue(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q on line %d: %w", key, i, err)
		}
		vars = append(vars, Var{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func parseValue(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	switch s[0] {
	case '"':
		end := strings.LastIndexByte(s, '"')
		if end == 0 {
			return "", fmt.Errorf("unterminated double quote: %w", os.ErrInvalid)
		}
		return strconv.Unquote(s[:end+1])
	case '\'':
		end := strings.LastIndexByte(s, '\'')
		if end == 0 {
			return "", fmt.Errorf("unterminated single quote: %w", os.ErrInvalid)
		}
		return s[1:end], nil
	}
	if p := strings.Index(s, " #"); p != -1 {
		s = s[:p]
	}
	return strings.TrimSpace(s), nil
}
