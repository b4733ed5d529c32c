// Package provisioner obtains and installs a pinned release of the playout
// engine at image build time.
//
// It reuses a pre-staged archive when one matches the expected filename
// (no network access, supporting air-gapped builds), fetches it from the
// version-addressed release location otherwise, verifies it against a sha256
// sidecar when one is available, extracts it into a scratch directory, and
// stages the engine binary plus its runtime assets at fixed filesystem
// locations. Every failure aborts the build with a non-zero exit.
package provisioner
