package hasura

const userFields = `
    id
    email
    first_name
    last_name
    first_visit
    token_version
    users_scopes {
      scope {
        id
        name
      }
    }
    practitioners {
      setup_complete
    }
`

const getUserByID = `
query GetUserById($id: String!) {
  h3_users(where: {id: {_eq: $id}}) {` + userFields + `  }
}
`

const getUserByEmail = `
query GetUserByEmail($email: String!) {
  h3_users(where: {email: {_eq: $email}}) {` + userFields + `  }
}
`

// insertPractitioner creates the user with an empty practitioner profile.
const insertPractitioner = `
mutation InsertPractitioner($email: String!, $firstName: String!, $lastName: String!, $scopeId: String!) {
  insert_h3_users(objects: {
    email: $email,
    first_name: $firstName,
    last_name: $lastName,
    users_scopes: {data: {scope_id: $scopeId}},
    practitioners: {data: {setup_complete: false}}
  }) {
    returning {` + userFields + `    }
  }
}
`

const insertClient = `
mutation InsertClient($email: String!, $firstName: String!, $lastName: String!, $scopeId: String!) {
  insert_h3_users(objects: {
    email: $email,
    first_name: $firstName,
    last_name: $lastName,
    users_scopes: {data: {scope_id: $scopeId}}
  }) {
    returning {` + userFields + `    }
  }
}
`

// incrementTokenVersion only matches while token_version still equals $current.
const incrementTokenVersion = `
mutation IncrementTokenVersion($id: String!, $current: Int!) {
  update_h3_users(where: {id: {_eq: $id}, token_version: {_eq: $current}}, _inc: {token_version: 1}) {
    affected_rows
    returning {` + userFields + `    }
  }
}
`

const getScopeIDByName = `
query GetScopeIdByName($scopeName: String!) {
  h3_scopes(where: {name: {_eq: $scopeName}}) {
    id
    name
  }
}
`
