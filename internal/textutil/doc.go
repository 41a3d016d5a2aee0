// Package textutil cleans client supplied names before they touch the
// filesystem.
package textutil
