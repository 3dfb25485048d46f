package config

import (
	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/sqlite"
)

// OpenSource builds the configured corpus source. The returned close
// function releases it and is never nil.
func OpenSource(cfg *Config) (corpus.Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Data.Source {
	case SourceDir:
		return corpus.NewDirSource(cfg.Data.Location), noop, nil
	case SourceHTTP:
		src, err := corpus.NewHTTPSource(cfg.Data.Location, nil)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case SourceSQLite:
		store, err := sqlite.OpenStoreReadOnly(cfg.Data.Location)
		if err != nil {
			return nil, noop, qerrors.Wrapf(err, "open data store %s", cfg.Data.Location)
		}
		return store, store.Close, nil
	}
	return nil, noop, qerrors.NewValidation("data.source", "unknown source "+cfg.Data.Source)
}
