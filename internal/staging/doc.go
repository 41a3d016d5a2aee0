// Package staging removes temporary files abandoned in the job tree.
//
// Uploads, atomic artifact writes and cross-device moves all stage data under
// hidden names beside their destination. A crash mid-write leaves those files
// behind; the scheduler never sees them because hidden names are skipped, so
// they are swept here once they are old enough that no writer can own them.
package staging
