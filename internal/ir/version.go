package ir

// ManifestVersion is the only attribute written into archive manifests.
const ManifestVersion = "1.0"
