package crud

// Version is the crudforms release.
const Version = "0.1.0"
