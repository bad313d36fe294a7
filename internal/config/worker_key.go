package config

type WorkerKeyStruct struct {
	PersistViolationsQueue    string
	PersistDraftsQueue        string
	ReconcileSubmissionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue:    "persist_violations_queue",
	PersistDraftsQueue:        "persist_drafts_queue",
	ReconcileSubmissionsQueue: "reconcile_submissions_queue",
}
