// Package http loads record content from the export service over HTTP.
package http
