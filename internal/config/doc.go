// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults rooted in the XDG base directories, expands
// user paths (including tilde shortcuts), reads TOML files, loads a .env file
// for secrets, and honours environment fallbacks such as FERRY_CATALOG_TOKEN
// and TELEGRAM_BOT_TOKEN. The Config type centralizes every knob the CLI
// needs so staging paths, sink credentials, and transfer limits are
// discovered in one pass.
//
// Catalog credentials are validated separately (ValidateCatalog) because only
// the catalog walk needs them; batch runs and ledger maintenance do not.
package config
