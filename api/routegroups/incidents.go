package routegroups

import (
	"github.com/go-chi/chi/v5"

	"drdesk/api/handlers"
	"drdesk/core/auth"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, incidents *handlers.IncidentsHandler, selection *handlers.SelectionHandler) {
	apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
		incidentsRouter.MethodFunc("GET", "/", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.List))
		incidentsRouter.MethodFunc("GET", "/one", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.Get))
		incidentsRouter.MethodFunc("GET", "/pending", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.ListPending))
		incidentsRouter.MethodFunc("GET", "/rejected", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.ListRejected))
		incidentsRouter.MethodFunc("GET", "/action-required", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.ListActionRequired))
		incidentsRouter.MethodFunc("GET", "/status/{status}", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.ListByStatus))
		incidentsRouter.MethodFunc("GET", "/next-step", g.SessionPerm(auth.ObjIncidents, auth.ActRead, incidents.NextStep))
		incidentsRouter.MethodFunc("PATCH", "/status", g.SessionPerm(auth.ObjIncidents, auth.ActStatus, incidents.UpdateStatus))
		incidentsRouter.MethodFunc("POST", "/mark-pending", g.SessionPerm(auth.ObjIncidents, auth.ActWrite, incidents.MarkPending))
	})
	apiRouter.MethodFunc("POST", "/incident/status", g.SessionPerm(auth.ObjIncidents, auth.ActStatus, incidents.UpdateStatusCompat))

	apiRouter.MethodFunc("GET", "/selection", g.SessionPerm(auth.ObjSelection, auth.ActRead, selection.List))
	apiRouter.MethodFunc("POST", "/selection", g.SessionPerm(auth.ObjSelection, auth.ActWrite, selection.Create))
}

func RegisterStages(apiRouter chi.Router, g Guards, stages *handlers.StagesHandler) {
	apiRouter.Route("/stages", func(stagesRouter chi.Router) {
		stagesRouter.MethodFunc("GET", "/{kind}", g.SessionPerm(auth.ObjStages, auth.ActRead, stages.Get))
		stagesRouter.MethodFunc("POST", "/{kind}", g.SessionPerm(auth.ObjStages, auth.ActWrite, stages.Save))
	})
}

func RegisterAttachments(apiRouter chi.Router, g Guards, attachments *handlers.AttachmentsHandler) {
	apiRouter.Route("/attachments", func(attachmentsRouter chi.Router) {
		attachmentsRouter.MethodFunc("GET", "/", g.SessionPerm(auth.ObjAttachments, auth.ActRead, attachments.List))
		attachmentsRouter.MethodFunc("POST", "/", g.SessionPerm(auth.ObjAttachments, auth.ActWrite, attachments.Upload))
		attachmentsRouter.MethodFunc("DELETE", "/{id}", g.SessionPerm(auth.ObjAttachments, auth.ActWrite, attachments.Delete))
	})
}
