package models

import "fmt"

// MissingSourceError means no data file exists at a realization's storage
// location. Fatal for that realization, not for the ensemble.
type MissingSourceError struct {
	Path string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("no data source at %s", e.Path)
}

// MalformedDataError means a realization's data violates the schema:
// non-monotonic dates, missing required columns, or ragged rows.
type MalformedDataError struct {
	Realization int
	Path        string
	Reason      string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("realization %d (%s): %s", e.Realization, e.Path, e.Reason)
}

// FrequencyMismatchError means tables resampled at different frequencies were
// combined. Programming error, always fatal, never retried.
type FrequencyMismatchError struct {
	Want Frequency
	Got  Frequency
}

func (e *FrequencyMismatchError) Error() string {
	return fmt.Sprintf("frequency mismatch: %s vs %s", e.Want, e.Got)
}

// IncompatibleGridError means a delta was requested between ensembles
// resampled at different frequencies. The caller must resample both at the
// same frequency first.
type IncompatibleGridError struct {
	FreqA Frequency
	FreqB Frequency
}

func (e *IncompatibleGridError) Error() string {
	return fmt.Sprintf("incompatible grids: %s vs %s", e.FreqA, e.FreqB)
}

// PortableDataUnavailableError means a frozen deployment is missing a cache
// entry. Signals a build-time omission; the original sources must not be
// re-read.
type PortableDataUnavailableError struct {
	Fingerprint string
}

func (e *PortableDataUnavailableError) Error() string {
	return fmt.Sprintf("portable cache has no entry for fingerprint %s", e.Fingerprint)
}

// EmptyEnsembleError means marker-file exclusion removed every realization
// from an ensemble. Nothing should silently render on empty data.
type EmptyEnsembleError struct {
	Ensemble string
	Excluded int
}

func (e *EmptyEnsembleError) Error() string {
	return fmt.Sprintf("ensemble %s has no usable realizations (%d excluded)", e.Ensemble, e.Excluded)
}
