// Package registry pulls images from a Docker Registry HTTP API v2 endpoint.
//
// A [Session] owns the state of one pull: it obtains a pull-scoped bearer
// token from the registry's token service, fetches the image manifest and
// config, and downloads each layer blob by digest, handing it to the layer
// package for extraction into a destination directory. The calls must be
// made in that order; calling a later step before an earlier one succeeded
// is a programming error and panics.
//
// Layers are always applied to the destination in manifest order, lowest
// first, because later layers overwrite files from earlier ones. When
// [Config.Parallel] is greater than one, blob downloads run ahead of
// extraction in a bounded window, but application order is unchanged.
//
// Every downloaded blob is checked against the size and digest declared by
// its descriptor before it is used. Nothing is cached between sessions.
//
// Example usage:
//
//	img, err := registry.ParseImage("alpine:3.20")
//	if err != nil {
//	    return err
//	}
//
//	s, err := registry.NewSession(registry.Config{}, img)
//	if err != nil {
//	    return err
//	}
//
//	if err := s.Authenticate(ctx); err != nil {
//	    return err
//	}
//	if _, err := s.FetchManifest(ctx); err != nil {
//	    return err
//	}
//	if err := s.DownloadLayers(ctx, rootfs); err != nil {
//	    return err
//	}
package registry
