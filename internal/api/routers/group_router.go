package routers

import (
	"net/http"

	"github.com/Khoadoanduy/fair-share-sub001/internal/api/handlers/group"
)

func groupRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/group/{groupId}", group.MembersHandler)

	mux.HandleFunc("/group/{groupId}/card", group.CardHandler)

	mux.HandleFunc("/group/{groupId}/{userId}", group.MemberHandler)

	return mux
}
