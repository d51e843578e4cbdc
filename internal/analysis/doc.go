// Package analysis implements the ANALYZE stage. Each submission's demo
// video is reviewed first so its transcript can inform the code review;
// the two reviews and the repository evidence are then scored against the
// configured rubric.
package analysis
