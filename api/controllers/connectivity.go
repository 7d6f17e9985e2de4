package controllers

import (
	"net/http"

	"github.com/angelmondragon/crewsync/api/responses"
)

// ConnectivityState returns the watcher snapshot.
func ConnectivityState(conn StateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, conn.State())
	}
}
