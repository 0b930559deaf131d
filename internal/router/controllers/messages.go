package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Messages joins the caller to an offer channel's bidirectional message
// group. Frames are validated and relayed to the other members; the raw
// offer state each frame carries is decoded alongside.
func (c *Controller) Messages(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(mux.Vars(r)["guid"])
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid channel guid")
		return
	}
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	member := c.groups.Join(guid.String(), conn)
	c.groups.ReadLoop(guid.String(), member)
	c.groups.Leave(guid.String(), member)
}
