package utils

const (
	// NODETOL is the slack used when testing whether a reference point lies inside an element
	NODETOL = 1.e-12
)
