package blobs

var MapError = mapError
