// Package downloading implements the DOWNLOAD stage, fetching each
// submission's demo video into the run directory.
package downloading
