package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Activity API",
        "description": "Campus activity enrollment service with capacity, waitlist and schedule conflict handling",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and accounts"},
        {"name": "Activities", "description": "Activity catalog and approval lifecycle"},
        {"name": "Enrollments", "description": "Seats, waitlists and cancellations"},
        {"name": "Conflicts", "description": "Schedule overlap audit"},
        {"name": "Announcements", "description": "Campus announcements"},
        {"name": "Dashboard", "description": "Aggregate statistics"},
        {"name": "Reports", "description": "Asynchronous report jobs"},
        {"name": "Audit", "description": "Audit trail"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and receive an access token",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create a user account (admin only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Account created"},
                    "409": {"description": "Username taken"}
                }
            }
        },
        "/activities": {
            "get": {
                "tags": ["Activities"],
                "summary": "List activities with enrollment counts",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Activities"],
                "summary": "Submit a new activity for approval",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created pending approval"}}
            }
        },
        "/activities/{id}/approve": {
            "post": {
                "tags": ["Activities"],
                "summary": "Approve a pending activity",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Approved"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll in an activity, waitlisting when full",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Enrolled or waitlisted"},
                    "409": {"description": "Duplicate claim or schedule conflict"},
                    "422": {"description": "Activity not enrollable"}
                }
            }
        },
        "/enrollments/waitlist": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Join the waitlist directly",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Waitlisted"}}
            }
        },
        "/enrollments/{id}": {
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Cancel an enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Cancelled, promotion reported when it happened"},
                    "404": {"description": "Unknown enrollment"}
                }
            }
        },
        "/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "Audit all schedules for overlapping enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Conflict list, empty when clean"}}
            }
        },
        "/announcements": {
            "get": {
                "tags": ["Announcements"],
                "summary": "List announcements",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard statistics",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report job",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Job queued"}}
            }
        },
        "/reports/{id}/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report via its signed URL",
                "responses": {
                    "200": {"description": "Report file"},
                    "403": {"description": "Signature rejected or expired"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
