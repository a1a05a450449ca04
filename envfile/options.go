// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"fmt"
	"os"
	"regexp"
)

type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (v optionFunc) apply(opts *options) error {
	return v(opts)
}

// SearchCurrentDir looks for the env file in the current directory, and also
// in its ancestors when searchParentDirs is true. Without this option only the
// home directory is searched.
func SearchCurrentDir(searchParentDirs bool) Option {
	return optionFunc(func(opts *options) error {
		opts.searchCurrentDirectory = true
		opts.scanParentDirectories = searchParentDirs
		return nil
	})
}

// FilePath loads exactly the given file, which must exist.
func FilePath(fpath string) Option {
	return optionFunc(func(opts *options) error {
		if len(fpath) == 0 {
			return fmt.Errorf("env file path cannot be empty: %w", os.ErrInvalid)
		}
		opts.filePath = fpath
		return nil
	})
}

var keyRe = regexp.MustCompile("^[a-zA-Z_][0-9a-zA-Z_]*$")

// OnlyKeys restricts the loaded variables to the given names. Other
// assignments in the file are skipped.
func OnlyKeys(keys ...string) Option {
	return optionFunc(func(opts *options) error {
		if opts.allowedKeys == nil {
			opts.allowedKeys = make(map[string]bool)
		}
		for _, k := range keys {
			if !keyRe.MatchString(k) {
				return fmt.Errorf("variable name %q has invalid characters: %w", k, os.ErrInvalid)
			}
			opts.allowedKeys[k] = true
		}
		return nil
	})
}

// OverwriteIfExists replaces variables that already have a non-empty value in
// the environment. They are kept by default.
func OverwriteIfExists(overwrite bool) Option {
	return optionFunc(func(opts *options) error {
		opts.overwriteIfExists = overwrite
		return nil
	})
}
