// Package chart reads and rewrites the #OFFSET field of StepMania-style chart
// files (.sm, .ssc).
//
// Only that one field is understood. ReadOffset extracts the value and the
// number of fractional digits it was written with; Patcher rewrites the field
// in place, leaving every other byte untouched, decoding through an ordered
// list of codecs and normalizing fallback-decoded files to UTF-8.
package chart
