package dummydb

import (
	"sync"

	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user         *userTable
		notification *notificationTable
		enrollment   *enrollmentTable
	}

	userTable struct {
		sync.RWMutex
		users       map[string]*user.User
		instructors map[string]*user.InstructorProfile
		students    map[string]*user.StudentProfile
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	enrollmentTable struct {
		sync.RWMutex
		table map[string][]enrollment.Enrollment // student id -> enrollments
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			users:       make(map[string]*user.User),
			instructors: make(map[string]*user.InstructorProfile),
			students:    make(map[string]*user.StudentProfile),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		enrollment:   &enrollmentTable{table: make(map[string][]enrollment.Enrollment)},
	}
	return db, nil
}
