// Package httputil holds the small response/request helpers shared by all
// API handlers: a JSON envelope, standard error responses, and body decoding.
package httputil
