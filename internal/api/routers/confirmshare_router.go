package routers

import (
	"net/http"

	"github.com/Khoadoanduy/fair-share-sub001/internal/api/handlers/confirmshare"
)

func confirmShareRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/confirmShare/{groupId}", confirmshare.RoundHandler)

	mux.HandleFunc("/confirmShare/{groupId}/{userId}", confirmshare.MemberHandler)

	return mux
}
