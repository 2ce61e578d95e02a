// Package callback runs the loopback landing page that identity redirects
// (email links, password recovery) are sent to. The page posts the URL
// fragment back to the process and removes it from the browser history, so
// tokens never stay in the address bar.
package callback
