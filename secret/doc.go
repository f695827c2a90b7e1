// Package secret resolves secrets referenced from configuration values.
//
// Values are first expanded strictly against the environment (${VAR} must be
// set, $$ escapes a dollar), then any "secretref:<provider>:<ref>" reference
// is resolved through a registered Provider:
//
//	secretref:env:TOOLPIPE_SIGNING_KEY
//	secretref:file:jwt/signing.key
//	Bearer secretref:env:UPSTREAM_TOKEN
//
// The env and file providers are built in; NewDefaultRegistry knows how to
// construct them from configuration maps.
package secret
