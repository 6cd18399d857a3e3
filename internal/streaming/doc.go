/*
Package streaming writes HTTP response bodies with per-chunk write
deadlines.

The main server runs without a WriteTimeout because fetches of remote
originals can take a long time before the first byte is ready. Once a body
is ready, Writer bounds how long a slow client may take to accept each
chunk:

	w.WriteHeader(http.StatusOK)
	if _, err := streaming.Send(r.Context(), w, data, streaming.DefaultConfig()); err != nil {
	    if errors.Is(err, streaming.ErrClientGone) {
	        return
	    }
	    logging.Warn("send failed: %v", err)
	}

Deadlines are set with http.ResponseController, so middleware that wraps
the ResponseWriter must implement Unwrap for them to reach the connection.
*/
package streaming
