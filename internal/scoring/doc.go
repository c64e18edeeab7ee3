// Package scoring converts mock-test results into IELTS bands.
//
// Listening and Reading raw scores are placed on a fixed threshold table,
// answer sheets are tallied against accepted answers, and full mock tests
// combine the section bands with an assigned Writing band. Every function is
// pure and safe for concurrent use.
package scoring
