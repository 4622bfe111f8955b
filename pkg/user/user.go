package user

type User struct {
	Id       int
	Uid      string
	Username string
}
