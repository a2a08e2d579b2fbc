package usecase

// DependencySignature is exported for testing
var DependencySignature = dependencySignature
